package api

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/intake"
)

type formController struct {
	// ctx is cancelled when the server shuts down.
	ctx            context.Context
	service        *intake.Service
	maxUploadBytes int64
}

func newFormController(ctx context.Context, svc *intake.Service, maxUploadBytes int64) *formController {
	return &formController{ctx: ctx, service: svc, maxUploadBytes: maxUploadBytes}
}

func (h *formController) RegisterRoutes(r fiber.Router) {
	g := r.Group("/forms")
	g.Post("", h.Create)
	g.Get("/:id", h.Show)
	g.Put("/:id/supplier", h.SetSupplier)
	g.Put("/:id/po", h.SetPONumber)
	g.Post("/:id/documents/:docId", h.Upload)
	g.Delete("/:id/documents/:docId", h.Reset)
	g.Post("/:id/submit", h.Submit)
}

type supplierRequest struct {
	SupplierType string `json:"supplierType"`
}

type poRequest struct {
	PONumber string `json:"poNumber"`
}

func (h *formController) Create(c *fiber.Ctx) error {
	snap := h.service.NewForm()
	return c.Status(fiber.StatusCreated).JSON(SuccessResponse("Success create form", snap))
}

func (h *formController) Show(c *fiber.Ctx) error {
	snap, err := h.service.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse("Success get form", snap))
}

func (h *formController) SetSupplier(c *fiber.Ctx) error {
	var req supplierRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	snap, err := h.service.SetSupplierType(c.Params("id"), req.SupplierType)
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse("Success update supplier type", snap))
}

func (h *formController) SetPONumber(c *fiber.Ctx) error {
	var req poRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	snap, err := h.service.SetPONumber(c.Params("id"), req.PONumber)
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse("Success update purchase order number", snap))
}

// Upload accepts a multipart "file" field. The readability check runs in
// the background, so the reply is 202 with the document still processing.
func (h *formController) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file field")
	}
	if err := catalog.ValidateUpload(fh.Filename, fh.Size, h.maxUploadBytes); err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	snap, err := h.service.Upload(c.Params("id"), c.Params("docId"), fh.Filename, data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(SuccessResponse("Upload accepted", snap))
}

func (h *formController) Reset(c *fiber.Ctx) error {
	snap, err := h.service.Reset(c.Params("id"), c.Params("docId"))
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse("Success reset document", snap))
}

func (h *formController) Submit(c *fiber.Ctx) error {
	ctx, cancel := context.WithCancel(c.UserContext())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	receipt, err := h.service.Submit(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse(receipt.Message, receipt))
}
