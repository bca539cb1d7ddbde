package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/billing"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/usercontext"
)

type PaymentController struct {
	billing *billing.Service
}

func NewPaymentController(svc *billing.Service) *PaymentController {
	return &PaymentController{billing: svc}
}

type planCheckoutRequest struct {
	PlanType string `json:"planType" validate:"required"`
}

// scriptCheckoutRequest still accepts scriptTitle and scriptPrice from older
// clients; both are ignored in favour of the stored script.
type scriptCheckoutRequest struct {
	ScriptID    uint    `json:"scriptId" validate:"required"`
	ScriptTitle string  `json:"scriptTitle"`
	ScriptPrice float64 `json:"scriptPrice"`
}

func (pc *PaymentController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req planCheckoutRequest
	if err := decodeBody(c, &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_plan", "Invalid plan type")
	}
	res, err := pc.billing.BeginCheckout(c.UserContext(), usercontext.GetUserID(c), billing.Purchase{PlanType: req.PlanType})
	if err != nil {
		return pc.handleError(c, err)
	}
	return c.JSON(res)
}

func (pc *PaymentController) HandleCreateScriptCheckout(c *fiber.Ctx) error {
	var req scriptCheckoutRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Script details are required")
	}
	res, err := pc.billing.BeginCheckout(c.UserContext(), usercontext.GetUserID(c), billing.Purchase{ScriptID: req.ScriptID})
	if err != nil {
		return pc.handleError(c, err)
	}
	return c.JSON(res)
}

func (pc *PaymentController) HandleListPurchases(c *fiber.Ctx) error {
	items, err := pc.billing.ListPurchases(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return pc.handleError(c, err)
	}
	return c.JSON(fiber.Map{"licenses": items})
}

func (pc *PaymentController) HandleOrderStatus(c *fiber.Ctx) error {
	order, err := pc.billing.GetOrderStatus(c.UserContext(), usercontext.GetUserID(c), c.Params("sessionId"))
	if err != nil {
		return pc.handleError(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}

func (pc *PaymentController) HandleSubscription(c *fiber.Ctx) error {
	sub, err := pc.billing.GetActiveSubscription(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return pc.handleError(c, err)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// HandleVerifySession is the success-page poll. It reconciles the order
// with the gateway and returns what the order has issued. The plaintext
// license key is included at most once.
func (pc *PaymentController) HandleVerifySession(c *fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Params("sessionId"))
	if sessionID == "" {
		return badRequest(c, "sessionId is required")
	}

	conf, err := pc.billing.ConfirmCheckout(c.UserContext(), sessionID)
	if err != nil {
		return pc.handleError(c, err)
	}
	view, err := pc.billing.GetEntitlementsForSession(c.UserContext(), sessionID, 0)
	if err != nil {
		return pc.handleError(c, err)
	}

	resp := fiber.Map{
		"success":       conf.Paid,
		"order":         view.Order,
		"license":       view.License,
		"subscription":  view.Subscription,
		"purchaseType":  view.PurchaseType,
		"planType":      view.PlanType,
		"scriptTitle":   view.ScriptTitle,
		"customerEmail": view.CustomerEmail,
	}
	key := view.LicenseKey
	if key == "" {
		key = conf.PlainKey
	}
	if key != "" {
		resp["licenseKey"] = key
	}
	return c.JSON(resp)
}

func (pc *PaymentController) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidPlan):
		return jsonError(c, fiber.StatusBadRequest, "invalid_plan", "Invalid plan type")
	case errors.Is(err, billing.ErrInvalidPurchase):
		return badRequest(c, "A plan type or script id is required")
	case errors.Is(err, billing.ErrUserNotFound):
		return notFound(c, "User not found")
	case errors.Is(err, billing.ErrScriptNotFound):
		return notFound(c, "Script not found")
	case errors.Is(err, billing.ErrOrderNotFound):
		return notFound(c, "Order not found")
	case errors.Is(err, billing.ErrMetadataMismatch):
		log.Errorf("[Payment] %s: %v", c.Path(), err)
		return jsonError(c, fiber.StatusConflict, "metadata_mismatch", "Checkout session does not belong to this order")
	case errors.Is(err, billing.ErrGateway):
		log.Errorf("[Payment] Gateway failure on %s: %v", c.Path(), err)
		return jsonError(c, fiber.StatusBadGateway, "gateway_error", "Payment provider unavailable. Please try again.")
	default:
		log.Errorf("[Payment] %s %s failed: %v", c.Method(), c.Path(), err)
		return internalError(c, "Payment request failed")
	}
}
