package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ScriptHub/app/controllers"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/middleware"
)

// Router registers one slice of the HTTP surface.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers bundles everything the routes are bound to.
type Handlers struct {
	Auth     *middleware.Authenticator
	Account  *controllers.AuthController
	Payment  *controllers.PaymentController
	License  *controllers.LicenseController
	Plan     *controllers.PlanController
	Script   *controllers.ScriptController
	AdminUsr *controllers.AdminUserController
}

func InstallRouter(app *fiber.App, h Handlers, ops OpsConfig) {
	// operational endpoints go first so the swagger middleware sees them
	setup(app, NewOpsRouter(ops), NewApiRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
