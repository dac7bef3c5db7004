package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/quota"
)

// MetaHandler serves the static enumerations the frontend renders forms from.
type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaPlan struct {
	ID     string       `json:"id"`
	Limits quota.Limits `json:"limits"`
}

type MetaOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var tones = []MetaOption{
	{ID: models.ToneProfessional, Label: "Professional"},
	{ID: models.ToneCasual, Label: "Casual"},
	{ID: models.ToneFormal, Label: "Formal"},
}

var careerGoals = []MetaOption{
	{ID: models.CareerGoalJob, Label: "Full-time job"},
	{ID: models.CareerGoalInternship, Label: "Internship"},
}

func (h *MetaHandler) GetPlans(c *fiber.Ctx) error {
	plans := make([]MetaPlan, 0, 3)
	for _, p := range []string{models.PlanFree, models.PlanPlus, models.PlanPro} {
		l, _ := quota.LimitsFor(p)
		plans = append(plans, MetaPlan{ID: p, Limits: l})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: plans})
}

func (h *MetaHandler) GetTones(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: tones})
}

func (h *MetaHandler) GetCareerGoals(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: careerGoals})
}

func (h *MetaHandler) GetProspectStatuses(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: models.AllProspectStatuses})
}
