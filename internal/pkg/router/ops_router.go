package router

import (
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsConfig configures the operational endpoints.
type OpsConfig struct {
	MetricsUser     string
	MetricsPassword string
	// UploadDir is served under /uploads when files are stored locally.
	UploadDir   string
	OpenAPIFile string
}

type OpsRouter struct {
	cfg OpsConfig
}

func NewOpsRouter(cfg OpsConfig) *OpsRouter {
	return &OpsRouter{cfg: cfg}
}

func (r OpsRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if r.cfg.MetricsUser != "" && r.cfg.MetricsPassword != "" {
		guard := basicauth.New(basicauth.Config{
			Users: map[string]string{r.cfg.MetricsUser: r.cfg.MetricsPassword},
		})
		app.Get("/metrics", guard, adaptor.HTTPHandler(promhttp.Handler()))
		app.Get("/monitor", guard, monitor.New(monitor.Config{Title: "ScriptHub Monitor"}))
	}

	// only cover images are public; script files go through the entitled download
	if r.cfg.UploadDir != "" {
		app.Static("/uploads/images", r.cfg.UploadDir+"/images", fiber.Static{
			CacheDuration: 10 * time.Second,
			MaxAge:        604800,
		})
	}

	if r.cfg.OpenAPIFile != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: r.cfg.OpenAPIFile,
			Path:     "v1",
		}))
	}
}
