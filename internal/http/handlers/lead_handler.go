package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/middleware"
	"github.com/linkedreach/backend/internal/services"
)

type LeadHandler struct {
	leadService *services.LeadService
	log         *zap.Logger
}

func NewLeadHandler(leadService *services.LeadService, log *zap.Logger) *LeadHandler {
	return &LeadHandler{leadService: leadService, log: log}
}

func (h *LeadHandler) CreateLead(c *fiber.Ctx) error {
	var req dto.CreateLeadRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	lead, err := h.leadService.Create(c.Context(), middleware.GetUserID(c), services.CreateLeadInput{
		Name:        req.Name,
		Position:    req.Position,
		Company:     req.Company,
		LinkedinURL: req.LinkedinURL,
		Message:     req.Message,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: lead})
}

func (h *LeadHandler) ListLeads(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	leads, err := h.leadService.List(c.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: leads})
}

func (h *LeadHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid lead id")
	}

	var req dto.LeadStatusRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	lead, err := h.leadService.UpdateStatus(c.Context(), middleware.GetUserID(c), id, req.Status)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: lead})
}

func (h *LeadHandler) DeleteLead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid lead id")
	}

	if err := h.leadService.Delete(c.Context(), middleware.GetUserID(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
