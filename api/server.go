package api

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/pkg/scan/manager"
)

// NewApp builds the fiber application with every route wired to the given
// scan manager. Split from StartAPI so tests can exercise the router without
// listening on a socket.
func NewApp(sm *manager.ScanManager) *fiber.App {
	apiLogger := log.With().Str("type", "api").Logger()

	app := fiber.New(fiber.Config{
		ServerHeader: "Recondor",
		AppName:      "Recondor API",
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(viper.GetStringSlice("api.cors.origins"), ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Disposition",
	}))

	app.Use(fiberzerolog.New(fiberzerolog.Config{
		Logger: &apiLogger,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API Running")
	})

	if viper.GetBool("api.metrics.enabled") {
		app.Get(fmt.Sprintf("%v/*", viper.GetString("api.metrics.path")), monitor.New(monitor.Config{Title: viper.GetString("api.metrics.title")}))
	}

	// Screenshots are persisted with paths relative to the reports root, so
	// /reports/<path> serves them directly.
	app.Static("/reports", reportsRoot())

	api := app.Group("/api/v1")
	api.Use(func(c *fiber.Ctx) error {
		c.Locals("manager", sm)
		return c.Next()
	})

	writeLimiter := limiter.New(limiter.Config{
		Max:               20,
		Expiration:        30 * time.Second,
		LimiterMiddleware: limiter.SlidingWindow{},
	})

	api.Post("/scans", writeLimiter, StartScanHandler)
	api.Get("/scans", ListScansHandler)
	api.Post("/scans/clear", writeLimiter, ClearHistoryHandler)
	api.Get("/scans/:id", GetScanHandler)
	api.Get("/scans/:id/findings", GetScanFindingsHandler)
	api.Get("/scans/:id/logs", GetScanLogsHandler)
	api.Get("/targets/:target/findings", GetTargetFindingsHandler)
	api.Get("/targets/:target/subdomains", GetTargetSubdomainsHandler)
	api.Get("/diag", DiagnosticsHandler)

	app.Use("/ws", RequireWebSocketUpgrade)
	app.Get("/ws/scans/:id", ScanEventsSocket(sm))

	return app
}

// StartAPI starts the manager's event consumer and serves the REST and
// websocket API until the listener fails.
func StartAPI(sm *manager.ScanManager) error {
	sm.Start()
	app := NewApp(sm)

	listenAddress := fmt.Sprintf("%v:%v", viper.Get("api.listen.host"), viper.Get("api.listen.port"))
	log.Info().Str("address", listenAddress).Msg("Starting the API")
	return app.Listen(listenAddress)
}

// reportsRoot is the directory the /reports static mount serves, the parent
// of the screenshots directory.
func reportsRoot() string {
	return filepath.Dir(viper.GetString("reports.screenshots_dir"))
}
