package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/middleware"
)

type ApiRouter struct {
	h Handlers
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}

func (r ApiRouter) InstallRouter(app *fiber.App) {
	h := r.h
	auth := h.Auth.RequireAuth
	admin := []fiber.Handler{auth, middleware.RequireAdmin}

	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "ScriptHub API",
		})
	})

	a := api.Group("/auth")
	a.Post("/register", h.Account.HandleRegister)
	a.Post("/verify", h.Account.HandleVerifyEmail)
	a.Post("/resend-otp", h.Account.HandleResendOTP)
	a.Post("/login", h.Account.HandleLogin)
	a.Post("/refresh", h.Account.HandleRefresh)
	a.Get("/me", auth, h.Account.HandleMe)

	api.Get("/plans", h.Plan.HandleList)
	api.Put("/plans/:id", append(admin, h.Plan.HandleUpdate)...)

	p := api.Group("/payment")
	p.Post("/webhook", h.Payment.HandleStripeWebhook)
	p.Get("/verify/:sessionId", h.Payment.HandleVerifySession)
	p.Post("/create-checkout-session", auth, h.Payment.HandleCreateCheckoutSession)
	p.Post("/create-script-checkout", auth, h.Payment.HandleCreateScriptCheckout)
	p.Get("/purchases", auth, h.Payment.HandleListPurchases)
	p.Get("/order/:sessionId", auth, h.Payment.HandleOrderStatus)
	p.Get("/subscription", auth, h.Payment.HandleSubscription)

	api.Post("/license/verify", h.License.HandleVerify)

	s := api.Group("/scripts")
	s.Get("/", h.Script.HandleList)
	s.Get("/:id", h.Script.HandleGet)
	s.Get("/:id/download", auth, h.Script.HandleDownload)
	s.Post("/", append(admin, h.Script.HandleCreate)...)
	s.Put("/:id", append(admin, h.Script.HandleUpdate)...)
	s.Delete("/:id", append(admin, h.Script.HandleDelete)...)

	u := api.Group("/users", admin...)
	u.Get("/", h.AdminUsr.HandleList)
	u.Get("/stats", h.AdminUsr.HandleStats)
	u.Get("/:id", h.AdminUsr.HandleGet)
	u.Put("/:id/role", h.AdminUsr.HandleUpdateRole)
	u.Delete("/:id", h.AdminUsr.HandleDelete)

	l := api.Group("/admin/licenses", admin...)
	l.Post("/:id/revoke", h.License.HandleRevoke)
	l.Post("/:id/reset-device", h.License.HandleResetDevice)
}
