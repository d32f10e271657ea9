// Package api provides the REST and websocket facade over the scan manager.
package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/scan/manager"
)

var validate = validator.New()

func getManager(c *fiber.Ctx) *manager.ScanManager {
	return c.Locals("manager").(*manager.ScanManager)
}

// StartScanHandler godoc
// @Summary Start a scan
// @Description Registers a pending scan for the target and runs it in the background
// @Tags Scans
// @Accept json
// @Produce json
// @Param input body ScanRequest true "Scan target"
// @Success 201 {object} ScanResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/scans [post]
func StartScanHandler(c *fiber.Ctx) error {
	input := new(ScanRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "Cannot parse JSON",
			Message: err.Error(),
		})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "Validation failed",
			Message: "The target does not look like a valid domain",
		})
	}

	scanID, err := getManager(c).StartScan(input.Target)
	if err != nil {
		log.Error().Err(err).Str("target", input.Target).Msg("Could not start scan")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "Could not start scan",
			Message: err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(ScanResponse{
		ScanID: scanID,
		Status: string(db.ScanStatusPending),
	})
}

// ListScansHandler godoc
// @Summary List scans
// @Description Get the most recent scans, newest first
// @Tags Scans
// @Produce json
// @Param limit query integer false "Maximum scans to return" default(50)
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/scans [get]
func ListScansHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	scans, err := getManager(c).ListScans(limit)
	if err != nil {
		log.Error().Err(err).Msg("Could not list scans")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not list scans"})
	}
	return c.JSON(fiber.Map{"data": scans, "count": len(scans)})
}

// GetScanHandler godoc
// @Summary Get scan details
// @Description Get one scan by its ID
// @Tags Scans
// @Produce json
// @Param id path string true "Scan ID"
// @Success 200 {object} db.Scan
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/scans/{id} [get]
func GetScanHandler(c *fiber.Ctx) error {
	scan, err := getManager(c).GetScan(c.Params("id"))
	if err != nil {
		if errors.Is(err, db.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "Scan not found",
				Message: "No scan found with the provided ID",
			})
		}
		log.Error().Err(err).Msg("Could not fetch scan")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not fetch scan"})
	}
	return c.JSON(scan)
}

// GetScanFindingsHandler godoc
// @Summary Get scan findings
// @Description Get the findings of one scan, optionally filtered by module and type
// @Tags Scans
// @Produce json
// @Param id path string true "Scan ID"
// @Param module query string false "Module path or category prefix"
// @Param type query string false "Finding type"
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/scans/{id}/findings [get]
func GetScanFindingsHandler(c *fiber.Ctx) error {
	findings, err := getManager(c).GetScanFindings(c.Params("id"), c.Query("module"), c.Query("type"))
	if err != nil {
		if errors.Is(err, db.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "Scan not found",
				Message: "No scan found with the provided ID",
			})
		}
		log.Error().Err(err).Msg("Could not fetch scan findings")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not fetch scan findings"})
	}
	return c.JSON(fiber.Map{"data": findings, "count": len(findings)})
}

// GetScanLogsHandler godoc
// @Summary Get scan progress log
// @Description Replay the buffered progress events of one scan
// @Tags Scans
// @Produce json
// @Param id path string true "Scan ID"
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/scans/{id}/logs [get]
func GetScanLogsHandler(c *fiber.Ctx) error {
	sm := getManager(c)
	if _, err := sm.GetScan(c.Params("id")); err != nil {
		if errors.Is(err, db.ErrScanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "Scan not found",
				Message: "No scan found with the provided ID",
			})
		}
		log.Error().Err(err).Msg("Could not fetch scan")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not fetch scan"})
	}
	events := sm.GetScanLog(c.Params("id"))
	return c.JSON(fiber.Map{"data": events, "count": len(events)})
}

// ClearHistoryHandler godoc
// @Summary Clear scan history
// @Description Delete all scans, findings and buffered progress events
// @Tags Scans
// @Produce json
// @Success 200 {object} ActionResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/scans/clear [post]
func ClearHistoryHandler(c *fiber.Ctx) error {
	if err := getManager(c).ClearHistory(); err != nil {
		log.Error().Err(err).Msg("Could not clear history")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "Could not clear history",
			Message: err.Error(),
		})
	}
	return c.JSON(ActionResponse{Status: "success", Message: "History cleared"})
}
