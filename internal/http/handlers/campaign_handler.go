package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/middleware"
	"github.com/linkedreach/backend/internal/services"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	userID := middleware.GetUserID(c)
	campaign, err := h.campaignService.CreateCampaign(c.Context(), userID, services.CreateCampaignInput{
		Name:            req.Name,
		TargetCompany:   req.TargetCompany,
		AutoApprove:     req.AutoApprove,
		AutoMessage:     req.AutoMessage,
		MessageTemplate: req.MessageTemplate,
		DailyLimit:      req.DailyLimit,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	campaign, err := h.campaignService.Get(c.Context(), middleware.GetUserID(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	var status *string
	if v := c.Query("status"); v != "" {
		status = &v
	}

	campaigns, err := h.campaignService.List(c.Context(), middleware.GetUserID(c), status, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	var req dto.UpdateCampaignRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	updated, err := h.campaignService.Update(c.Context(), middleware.GetUserID(c), id, services.UpdateCampaignInput{
		Name:            req.Name,
		MessageTemplate: req.MessageTemplate,
		AutoApprove:     req.AutoApprove,
		AutoMessage:     req.AutoMessage,
		DailyLimit:      req.DailyLimit,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: updated})
}

// SetStatus handles POST /campaigns/:id/:action (pause|resume).
func (h *CampaignHandler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	campaign, err := h.campaignService.SetStatus(c.Context(), middleware.GetUserID(c), id, c.Params("action"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) DeleteCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	if err := h.campaignService.Delete(c.Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CampaignHandler) AddProspect(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid campaign id")
	}

	var req dto.AddProspectRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	prospect, err := h.campaignService.AddProspect(c.Context(), middleware.GetUserID(c), id, req.Username)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: prospect})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 100)
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
