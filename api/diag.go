package api

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
)

// DiagnosticsHandler godoc
// @Summary Service diagnostics
// @Description Report service health, the working directory, and whether the database and reports directory are usable
// @Tags Diagnostics
// @Produce json
// @Router /api/v1/diag [get]
func DiagnosticsHandler(c *fiber.Ctx) error {
	cwd, _ := os.Getwd()
	return c.JSON(fiber.Map{
		"status":           "online",
		"cwd":              cwd,
		"db_exists":        fileExists(viper.GetString("database")),
		"reports_writable": dirWritable(reportsRoot()),
	})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirWritable probes the directory with a throwaway file, matching what the
// screenshot module needs at runtime.
func dirWritable(dir string) bool {
	probe, err := os.CreateTemp(dir, ".diag-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}
