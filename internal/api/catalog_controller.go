package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/inverif/internal/catalog"
)

type catalogController struct{}

func newCatalogController() *catalogController {
	return &catalogController{}
}

func (h *catalogController) RegisterRoutes(r fiber.Router) {
	r.Get("/catalog/:supplierType", h.Show)
}

type catalogResponse struct {
	SupplierType       catalog.SupplierType   `json:"supplierType"`
	Documents          []catalog.DocumentType `json:"documents"`
	AcceptedExtensions []string               `json:"acceptedExtensions"`
}

func (h *catalogController) Show(c *fiber.Ctx) error {
	t, err := catalog.ParseSupplierType(c.Params("supplierType"))
	if err != nil {
		return err
	}
	return c.JSON(SuccessResponse("Success get catalog", catalogResponse{
		SupplierType:       t,
		Documents:          catalog.Documents(t),
		AcceptedExtensions: catalog.AcceptedExtensions(),
	}))
}
