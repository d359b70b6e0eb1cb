package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"vitalstream/internal/services"
	"vitalstream/internal/store"
)

// PatientsHandler serves the dashboard read endpoints: the patient roster
// and per-patient snapshots.
type PatientsHandler struct {
	snapshotService *services.SnapshotService
}

// NewPatientsHandler creates a new patients handler
func NewPatientsHandler(snapshotService *services.SnapshotService) *PatientsHandler {
	return &PatientsHandler{snapshotService: snapshotService}
}

// List returns the full patient roster.
func (h *PatientsHandler) List(c *fiber.Ctx) error {
	patients, err := h.snapshotService.ListPatients(c.UserContext())
	if err != nil {
		log.Printf("❌ [PATIENTS] Failed to list patients: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list patients",
		})
	}

	return c.JSON(fiber.Map{
		"patients": patients,
		"count":    len(patients),
	})
}

// Snapshot returns one patient's current state: latest risk context plus
// short rolling histories, shaped like the live fanout payload so a
// reconnecting dashboard can render immediately.
func (h *PatientsHandler) Snapshot(c *fiber.Ctx) error {
	patientID := c.Params("id")

	snapshot, err := h.snapshotService.GetSnapshot(c.UserContext(), patientID)
	if err != nil {
		if errors.Is(err, store.ErrPatientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Patient not found",
			})
		}
		log.Printf("❌ [PATIENTS] Failed to build snapshot for %s: %v", patientID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build snapshot",
		})
	}

	return c.JSON(snapshot)
}
