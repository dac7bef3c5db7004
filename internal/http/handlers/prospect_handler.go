package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/middleware"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/scoring"
	"github.com/linkedreach/backend/internal/services"
)

type ProspectHandler struct {
	prospectService *services.ProspectService
	userService     *services.UserService
	log             *zap.Logger
}

func NewProspectHandler(prospectService *services.ProspectService, userService *services.UserService, log *zap.Logger) *ProspectHandler {
	return &ProspectHandler{prospectService: prospectService, userService: userService, log: log}
}

// actionResponse carries a committed transition whose follow-up step failed.
type actionResponse struct {
	*services.ActionResult
	GenerationError string `json:"generation_error,omitempty"`
	Retryable       bool   `json:"retryable,omitempty"`
}

// Action handles POST /prospects/:id/actions. markConnected also generates the
// outreach message; a failed generation keeps the connection and is reported
// alongside it so the client can retry generateMessage.
func (h *ProspectHandler) Action(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid prospect id")
	}

	var req dto.ProspectActionRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}
	userID := middleware.GetUserID(c)

	if req.Action == models.ActionMarkConnected {
		res, err := h.prospectService.ConnectAndGenerate(c.Context(), userID, id, req.Data.ConnectionID, req.Data.Tone)
		if err != nil && res == nil {
			return respondError(c, h.log, err)
		}
		out := actionResponse{ActionResult: res}
		if err != nil {
			h.log.Warn("message generation after connect failed",
				zap.String("prospect_id", id.String()), zap.Error(err))
			out.GenerationError = err.Error()
			out.Retryable = apperr.IsRetryable(err)
		}
		return c.JSON(dto.SuccessResponse{OK: true, Data: out})
	}

	res, err := h.prospectService.AdvanceProspect(c.Context(), userID, id, req.Action, services.ActionData{
		ConnectionID: req.Data.ConnectionID,
		Tone:         req.Data.Tone,
		Text:         req.Data.Text,
		Status:       req.Data.Status,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: actionResponse{ActionResult: res}})
}

// UpdateStatus is the manual override: PATCH /prospects/:id/status.
func (h *ProspectHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid prospect id")
	}

	var req dto.ProspectStatusRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	res, err := h.prospectService.AdvanceProspect(c.Context(), middleware.GetUserID(c), id,
		models.ActionManualStatusOverride, services.ActionData{Status: req.Status})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res.Prospect})
}

// Score rates a candidate without storing anything. Preferences default to the caller's.
func (h *ProspectHandler) Score(c *fiber.Ctx) error {
	var req dto.ScoreRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	var prefs models.Preferences
	if req.Preferences != nil {
		prefs = *req.Preferences
	} else {
		user, err := h.userService.Get(c.Context(), middleware.GetUserID(c))
		if err != nil {
			return respondError(c, h.log, err)
		}
		prefs = user.Preferences()
	}

	result := h.prospectService.Score(scoring.Candidate{
		Name:        req.Name,
		Position:    req.Position,
		Company:     req.Company,
		LinkedinURL: req.LinkedinURL,
		Location:    req.Location,
		Summary:     req.Summary,
		Experience:  req.Experience,
	}, req.TargetCompany, prefs)
	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}
