package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ScriptHub/app/models"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/statistics"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

type AdminUserController struct {
	users repository.UserRepository
	stats *statistics.Service
}

func NewAdminUserController(users repository.UserRepository, stats *statistics.Service) *AdminUserController {
	return &AdminUserController{users: users, stats: stats}
}

type roleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (ac *AdminUserController) HandleList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultUserPageSize)
	if limit < 1 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}

	users, total, err := ac.users.List(c.Query("search"), (page-1)*limit, limit)
	if err != nil {
		log.Errorf("[Admin] User list failed: %v", err)
		return internalError(c, "Failed to fetch users")
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	return c.JSON(fiber.Map{
		"users": users,
		"pagination": fiber.Map{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

func (ac *AdminUserController) HandleGet(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c, "User not found")
	}
	user, err := ac.users.GetWithRelations(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		log.Errorf("[Admin] Load user %d failed: %v", id, err)
		return internalError(c, "Failed to fetch user")
	}
	return c.JSON(user)
}

func (ac *AdminUserController) HandleUpdateRole(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c, "User not found")
	}
	var req roleRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, "Role is required")
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if !models.IsValidRole(role) {
		return badRequest(c, "Role must be USER, ADMIN or BANNED")
	}

	err := ac.users.UpdateRole(id, role)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		log.Errorf("[Admin] Role change for user %d failed: %v", id, err)
		return internalError(c, "Failed to update role")
	}
	log.Infof("[Admin] User %d role set to %s", id, role)
	return c.JSON(fiber.Map{"message": "Role updated", "id": id, "role": role})
}

func (ac *AdminUserController) HandleDelete(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return notFound(c, "User not found")
	}
	user, err := ac.users.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(c, "User not found")
	}
	if err != nil {
		log.Errorf("[Admin] Load user %d failed: %v", id, err)
		return internalError(c, "Failed to delete user")
	}
	if user.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Admin accounts cannot be deleted")
	}

	if err := ac.users.DeleteCascade(id); err != nil {
		log.Errorf("[Admin] Delete of user %d failed: %v", id, err)
		return internalError(c, "Failed to delete user")
	}
	ac.stats.Invalidate(c.UserContext())
	log.Infof("[Admin] User %d deleted", id)
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}

func (ac *AdminUserController) HandleStats(c *fiber.Ctx) error {
	dash, err := ac.stats.Dashboard(c.UserContext())
	if err != nil {
		log.Errorf("[Admin] Dashboard failed: %v", err)
		return internalError(c, "Failed to fetch statistics")
	}
	return c.JSON(dash)
}
