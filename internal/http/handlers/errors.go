package handlers

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/http/dto"
	"github.com/linkedreach/backend/internal/middleware"
)

// respondError maps a service error onto its HTTP status and body.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	base := dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)}

	var (
		validation *apperr.ValidationError
		quota      *apperr.QuotaExceededError
		limited    *apperr.RateLimitedError
		external   *apperr.ExternalServiceError
	)
	switch {
	case errors.As(err, &validation):
		base.Error = validation.Message
		base.Field = validation.Field
		return c.Status(fiber.StatusBadRequest).JSON(base)

	case errors.Is(err, apperr.ErrInvalidAction):
		return c.Status(fiber.StatusBadRequest).JSON(base)

	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(base)

	case errors.Is(err, apperr.ErrStaleState), errors.Is(err, apperr.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(base)

	case errors.As(err, &quota):
		return c.Status(fiber.StatusForbidden).JSON(dto.QuotaErrorResponse{
			ErrorResponse: base,
			Resource:      quota.Resource,
			Plan:          quota.Plan,
			Limit:         quota.Limit,
			Current:       quota.Current,
		})

	case errors.As(err, &limited):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(limited.ResetAt)))
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.RateLimitErrorResponse{
			ErrorResponse: base,
			Action:        limited.Action,
			Remaining:     limited.Remaining,
			ResetAt:       limited.ResetAt,
		})

	case errors.As(err, &external):
		status := fiber.StatusBadGateway
		if external.Retryable {
			status = fiber.StatusServiceUnavailable
		}
		log.Warn("external service failed", zap.String("service", external.Service), zap.Error(external.Err))
		return c.Status(status).JSON(dto.ExternalErrorResponse{
			ErrorResponse: base,
			Service:       external.Service,
			Retryable:     external.Retryable,
		})
	}

	log.Error("request failed",
		zap.String("request_id", base.RequestID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	base.Error = "internal server error"
	return c.Status(fiber.StatusInternalServerError).JSON(base)
}

func retryAfterSeconds(resetAt time.Time) int {
	return max(1, int(math.Ceil(time.Until(resetAt).Seconds())))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}
