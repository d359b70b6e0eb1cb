package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"vitalstream/internal/models"
	"vitalstream/internal/services"
)

// VitalsHandler handles sample ingestion from bedside devices.
type VitalsHandler struct {
	vitalService *services.VitalService
}

// NewVitalsHandler creates a new vitals handler
func NewVitalsHandler(vitalService *services.VitalService) *VitalsHandler {
	return &VitalsHandler{vitalService: vitalService}
}

// Upload accepts one sample from a device. The sample is persisted before
// any fanout happens, so a slow dashboard never turns into a device error.
func (h *VitalsHandler) Upload(c *fiber.Ctx) error {
	var req models.VitalsUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DeviceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "device_id is required",
		})
	}

	if _, err := h.vitalService.Ingest(c.UserContext(), &req); err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownDevice),
			errors.Is(err, services.ErrDeviceUnassigned),
			errors.Is(err, services.ErrDeviceInactive):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, services.ErrRateLimited):
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			log.Printf("❌ [VITALS] Ingest failed for device %s: %v", req.DeviceID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store sample",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Vitals uploaded successfully",
	})
}
