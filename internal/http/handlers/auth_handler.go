package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/auth"
	"github.com/linkedreach/backend/internal/config"
	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/services"
)

type AuthHandler struct {
	userService *services.UserService
	cfg         *config.Config
	log         *zap.Logger
}

func NewAuthHandler(userService *services.UserService, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, cfg: cfg, log: log}
}

// Session exchanges a signed sign-in assertion for an API token.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	var req dto.SessionRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return respondError(c, h.log, err)
	}

	identity, err := auth.ValidateAssertion(req.Assertion, h.cfg.IdentitySecret, h.cfg.IdentityMaxAge, time.Now())
	if err != nil {
		h.log.Debug("sign-in assertion rejected", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	user, err := h.userService.SignIn(c.Context(), identity)
	if err != nil {
		return respondError(c, h.log, err)
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Email, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}
