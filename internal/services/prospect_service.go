package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkedreach/backend/internal/apperr"
	"github.com/linkedreach/backend/internal/events"
	"github.com/linkedreach/backend/internal/models"
	"github.com/linkedreach/backend/internal/prospectsearch"
	"github.com/linkedreach/backend/internal/ratelimit"
	"github.com/linkedreach/backend/internal/scoring"
)

const (
	connectFollowUp = 7 * 24 * time.Hour
	messageFollowUp = 3 * 24 * time.Hour
	maxMessageLen   = 300
)

// ActionData carries the optional inputs of a prospect action.
type ActionData struct {
	ConnectionID *string // markConnected
	Tone         string  // generateMessage
	Text         *string // sendMessage: replaces the generated text
	Status       string  // manualStatusOverride
}

type ActionResult struct {
	Prospect     *models.Prospect     `json:"prospect"`
	ManualAction *models.ManualAction `json:"manual_action,omitempty"`
}

type ProspectService struct {
	prospects ProspectStore
	campaigns CampaignStore
	users     UserStore
	limiter   *ratelimit.Limiter
	generator MessageGenerator
	engine    *scoring.Engine
	rec       recorder
	now       func() time.Time
	log       *zap.Logger
}

func NewProspectService(
	prospects ProspectStore,
	campaigns CampaignStore,
	users UserStore,
	audit AuditLogger,
	limiter *ratelimit.Limiter,
	generator MessageGenerator,
	engine *scoring.Engine,
	publisher events.Publisher,
	log *zap.Logger,
) *ProspectService {
	return &ProspectService{
		prospects: prospects,
		campaigns: campaigns,
		users:     users,
		limiter:   limiter,
		generator: generator,
		engine:    engine,
		rec:       recorder{audit: audit, publisher: publisher, log: log},
		now:       time.Now,
		log:       log,
	}
}

// Score rates a candidate without touching storage.
func (s *ProspectService) Score(c scoring.Candidate, targetCompany string, prefs models.Preferences) models.ValidationData {
	return s.engine.Score(c, targetCompany, prefs)
}

// AdvanceProspect applies one lifecycle action for the owning user. Unknown
// actions and actions without an edge from the current status fail with
// apperr.ErrInvalidAction and change nothing.
func (s *ProspectService) AdvanceProspect(ctx context.Context, userID, prospectID uuid.UUID, action string, data ActionData) (*ActionResult, error) {
	rule, ok := models.LookupAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidAction, action)
	}

	p, c, err := s.prospects.GetOwned(ctx, prospectID, userID)
	if err != nil {
		return nil, err
	}
	if !rule.Allows(p.Status) {
		return nil, fmt.Errorf("%w: %s from %s", apperr.ErrInvalidAction, action, p.Status)
	}

	from := p.Status
	next := *p
	var manual *models.ManualAction

	switch action {
	case models.ActionApprove:
		if err := s.limiter.Check(ctx, userID, ratelimit.ActionConnectionRequest); err != nil {
			return nil, err
		}
		due := s.now().Add(connectFollowUp)
		next.NextActionAt = &due
		manual = &models.ManualAction{
			Type:         "connect",
			URL:          prospectsearch.ProfileURL(p.PublicID),
			Instructions: "Open the LinkedIn profile and send a connection request",
		}

	case models.ActionReject:
		next.NextActionAt = nil

	case models.ActionMarkConnected:
		if data.ConnectionID != nil {
			id := strings.TrimSpace(*data.ConnectionID)
			next.ConnectionID = &id
		}
		next.NextActionAt = nil

	case models.ActionGenerateMessage:
		msg, err := s.generate(ctx, userID, p, data.Tone)
		if err != nil {
			return nil, err
		}
		next.Message = msg

	case models.ActionSendMessage:
		if p.Message == nil {
			return nil, apperr.Validation("message", "generate a message before sending")
		}
		msg := *p.Message
		if data.Text != nil {
			text := strings.TrimSpace(*data.Text)
			if text == "" || utf8.RuneCountInString(text) > maxMessageLen {
				return nil, apperr.Validation("text", fmt.Sprintf("must be 1-%d characters", maxMessageLen))
			}
			msg.Text = text
		}
		if err := s.limiter.Check(ctx, userID, ratelimit.ActionMessageSend); err != nil {
			return nil, err
		}
		due := s.now().Add(messageFollowUp)
		next.Message = &msg
		next.NextActionAt = &due
		manual = &models.ManualAction{
			Type:         "message",
			URL:          MessagingURL(p.PublicID),
			Instructions: "Open LinkedIn messages to send your message",
		}

	case models.ActionManualStatusOverride:
		if !models.IsValidProspectStatus(data.Status) {
			return nil, apperr.Validation("status", "unknown prospect status")
		}
		next.Status = data.Status
		if !models.CanHoldMessage(next.Status) {
			next.Message = nil
		}
	}

	if rule.To != "" {
		next.Status = rule.To
	}

	if err := s.prospects.UpdateState(ctx, &next, from); err != nil {
		return nil, err
	}
	s.afterTransition(ctx, userID, c, &next, from, action)

	return &ActionResult{Prospect: &next, ManualAction: manual}, nil
}

// ConnectAndGenerate marks the connection accepted and then generates the
// outreach message. The two steps are separate: when generation fails the
// prospect stays CONNECTION_ACCEPTED without a message, the result carries
// the updated prospect and the error is retryable via generateMessage.
func (s *ProspectService) ConnectAndGenerate(ctx context.Context, userID, prospectID uuid.UUID, connectionID *string, tone string) (*ActionResult, error) {
	if tone != "" {
		if err := checkTone(tone); err != nil {
			return nil, err
		}
	}

	res, err := s.AdvanceProspect(ctx, userID, prospectID, models.ActionMarkConnected, ActionData{ConnectionID: connectionID})
	if err != nil {
		return nil, err
	}

	gen, err := s.AdvanceProspect(ctx, userID, prospectID, models.ActionGenerateMessage, ActionData{Tone: tone})
	if err != nil {
		s.log.Warn("message generation after connect failed",
			zap.String("prospect_id", prospectID.String()), zap.Error(err))
		return res, err
	}
	return gen, nil
}

func checkTone(tone string) error {
	if !models.IsValidTone(tone) {
		return apperr.Validation("tone", "must be professional, casual or formal")
	}
	return nil
}

func (s *ProspectService) generate(ctx context.Context, userID uuid.UUID, p *models.Prospect, tone string) (*models.ProspectMessage, error) {
	if tone == "" {
		tone = models.ToneProfessional
	}
	if err := checkTone(tone); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.LinkedinProfile) == 0 {
		return nil, apperr.Validation("linkedin_profile", "set your LinkedIn username before generating messages")
	}

	return s.generator.Generate(ctx, MessageRequest{
		Sender:         user.LinkedinProfile,
		TargetUsername: p.PublicID,
		Tone:           tone,
	})
}

func (s *ProspectService) afterTransition(ctx context.Context, userID uuid.UUID, c *models.Campaign, p *models.Prospect, from, action string) {
	s.rec.record(ctx, models.AuditLog{
		ActorUserID: actorUser(userID),
		ActorType:   "user",
		Action:      "prospect_" + action,
		EntityType:  models.AuditEntityProspect,
		EntityID:    &p.ID,
		Meta:        map[string]any{"old_status": from, "new_status": p.Status},
	})

	evType := events.EventProspectStatusChanged
	if action == models.ActionGenerateMessage {
		evType = events.EventProspectMessageReady
	}
	s.rec.publish(ctx, events.StreamProspect, events.ForUser(evType, userID, map[string]any{
		"prospect_id": p.ID.String(),
		"campaign_id": p.CampaignID.String(),
		"old_status":  from,
		"new_status":  p.Status,
	}))

	if from != p.Status && models.IsTerminalProspectStatus(p.Status) {
		if err := completeIfDone(ctx, s.campaigns, s.prospects, s.rec, c); err != nil {
			s.log.Warn("campaign completion check failed",
				zap.String("campaign_id", c.ID.String()), zap.Error(err))
		}
	}
}

// FollowUps announces prospects whose next action time has passed and clears
// the marker. Returns how many were announced.
func (s *ProspectService) FollowUps(ctx context.Context, limit int) (int, error) {
	due, err := s.prospects.DueForFollowUp(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, f := range due {
		if err := s.prospects.ClearNextAction(ctx, f.ProspectID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return n, err
		}
		s.rec.publish(ctx, events.StreamProspect, events.ForUser(events.EventProspectFollowUpDue, f.UserID, map[string]any{
			"prospect_id": f.ProspectID.String(),
			"campaign_id": f.CampaignID.String(),
			"name":        f.Name,
			"status":      f.Status,
			"due_at":      f.DueAt,
		}))
		n++
	}
	return n, nil
}

// MessagingURL opens a LinkedIn compose window addressed to the prospect.
func MessagingURL(publicID string) string {
	return "https://www.linkedin.com/messaging/compose?recipient=" + publicID
}
