package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// GetTargetFindingsHandler godoc
// @Summary Get target findings
// @Description Get findings across all scans of a target, optionally filtered by module and type
// @Tags Targets
// @Produce json
// @Param target path string true "Target domain"
// @Param module query string false "Module path or category prefix"
// @Param type query string false "Finding type"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/targets/{target}/findings [get]
func GetTargetFindingsHandler(c *fiber.Ctx) error {
	findings, err := getManager(c).GetTargetFindings(c.Params("target"), c.Query("module"), c.Query("type"))
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch target findings")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not fetch target findings"})
	}
	return c.JSON(fiber.Map{"data": findings, "count": len(findings)})
}

// GetTargetSubdomainsHandler godoc
// @Summary Get target subdomains
// @Description Get the sorted unique subdomains discovered for a target
// @Tags Targets
// @Produce json
// @Param target path string true "Target domain"
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/targets/{target}/subdomains [get]
func GetTargetSubdomainsHandler(c *fiber.Ctx) error {
	subdomains, err := getManager(c).GetUniqueSubdomains(c.Params("target"))
	if err != nil {
		log.Error().Err(err).Msg("Could not fetch target subdomains")
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Could not fetch target subdomains"})
	}
	return c.JSON(fiber.Map{"data": subdomains, "count": len(subdomains)})
}
