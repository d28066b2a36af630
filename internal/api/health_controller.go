package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/inverif/internal/ocr"
)

type healthController struct {
	engineInfo func() ocr.Info
	version    string
}

func newHealthController(engineInfo func() ocr.Info, version string) *healthController {
	return &healthController{engineInfo: engineInfo, version: version}
}

func (h *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", h.Health)
}

type healthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version,omitempty"`
	OCR     *ocr.Info `json:"ocr,omitempty"`
}

// Health reports liveness. A missing OCR engine degrades the service but
// does not take it down: PDF uploads still work.
func (h *healthController) Health(c *fiber.Ctx) error {
	res := healthResponse{Status: "ok", Version: h.version}
	if h.engineInfo != nil {
		info := h.engineInfo()
		res.OCR = &info
		if !info.Available {
			res.Status = "degraded"
		}
	}
	return c.JSON(SuccessResponse("healthy", res))
}
