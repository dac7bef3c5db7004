package models

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitRecord is one fixed window for an (action, user) pair.
type RateLimitRecord struct {
	Key         string    `json:"key"`
	UserID      uuid.UUID `json:"user_id"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}
