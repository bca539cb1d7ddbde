package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ScriptHub/internal/pkg/catalog"
)

type PlanController struct {
	catalog *catalog.Service
}

func NewPlanController(svc *catalog.Service) *PlanController {
	return &PlanController{catalog: svc}
}

func (pc *PlanController) HandleList(c *fiber.Ctx) error {
	plans, err := pc.catalog.ListPlans(c.UserContext())
	if err != nil {
		log.Errorf("[Plans] List failed: %v", err)
		return internalError(c, "Could not load plans")
	}
	return c.JSON(plans)
}

func (pc *PlanController) HandleUpdate(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid plan id")
	}
	var in catalog.PlanUpdate
	if err := decodeBody(c, &in); err != nil {
		return badRequest(c, "Invalid plan data")
	}

	plan, err := pc.catalog.UpdatePlan(c.UserContext(), id, in)
	if errors.Is(err, catalog.ErrPlanNotFound) {
		return notFound(c, "Plan not found")
	}
	if err != nil {
		log.Errorf("[Plans] Update of plan %d failed: %v", id, err)
		return internalError(c, "Could not update plan")
	}
	return c.JSON(plan)
}
