package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/middleware"
	"github.com/linkedreach/backend/internal/services"
)

type UserHandler struct {
	userService *services.UserService
	log         *zap.Logger
}

func NewUserHandler(userService *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user, err := h.userService.Get(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) UpdatePreferences(c *fiber.Ctx) error {
	var req dto.PreferencesRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.userService.UpdatePreferences(c.Context(), middleware.GetUserID(c), services.PreferencesInput{
		CareerGoal:       req.CareerGoal,
		Industry:         req.Industry,
		TargetRoles:      req.TargetRoles,
		LinkedinUsername: req.LinkedinUsername,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) CheckPlan(c *fiber.Ctx) error {
	updated, user, err := h.userService.CheckPlan(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CheckPlanResponse{Updated: updated, User: user}})
}

func (h *UserHandler) Limits(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.userService.RateLimits(c.Context(), middleware.GetUserID(c))})
}

func (h *UserHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.userService.Stats(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}
