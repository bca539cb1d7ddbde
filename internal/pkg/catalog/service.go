package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

// PlanUpdate carries the admin-editable plan fields; nil leaves a field unchanged.
type PlanUpdate struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Price       *string   `json:"price" validate:"omitempty,max=50"`
	Period      *string   `json:"period" validate:"omitempty,max=50"`
	Description *string   `json:"description"`
	Features    *[]string `json:"features"`
	ButtonText  *string   `json:"buttonText" validate:"omitempty,max=100"`
	Popular     *bool     `json:"popular"`
	Color       *string   `json:"color" validate:"omitempty,max=100"`
}

type Service struct {
	plans repository.PlanRepository
}

func NewService(plans repository.PlanRepository) *Service {
	return &Service{plans: plans}
}

// ListPlans seeds the defaults into an empty catalog and returns the plans
// in tier order.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	count, err := s.plans.Count()
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}
	if count == 0 {
		log.Infof("[Catalog] Plan catalog empty, seeding defaults")
		if err := s.plans.CreateIfMissing(DefaultPlans()); err != nil {
			return nil, fmt.Errorf("seed plans: %w", err)
		}
	}

	plans, err := s.plans.List()
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	SortByTier(plans)
	return plans, nil
}

// SortByTier orders plans by the fixed tier order, keeping storage order on ties.
func SortByTier(plans []models.Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return TierRank(plans[i].PlanType) < TierRank(plans[j].PlanType)
	})
}

func (s *Service) UpdatePlan(ctx context.Context, id uint, in PlanUpdate) (*models.Plan, error) {
	plan, err := s.plans.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load plan %d: %w", id, err)
	}

	if in.Name != nil {
		plan.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		if p := strings.TrimSpace(*in.Price); p == "" {
			plan.Price = nil
		} else {
			plan.Price = &p
		}
	}
	if in.Period != nil {
		plan.Period = *in.Period
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.Features != nil {
		plan.Features = append([]string{}, (*in.Features)...)
	}
	if in.ButtonText != nil {
		plan.ButtonText = *in.ButtonText
	}
	if in.Popular != nil {
		plan.Popular = *in.Popular
	}
	if in.Color != nil {
		plan.Color = *in.Color
	}

	if err := s.plans.Update(plan); err != nil {
		return nil, fmt.Errorf("update plan %d: %w", id, err)
	}
	return plan, nil
}
