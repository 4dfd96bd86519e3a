package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
	EventTypeProgressStarted   EventType = "progress.started"
	EventTypeProgressAdvanced  EventType = "progress.advanced"
	EventTypeCombatResolved    EventType = "combat.resolved"
	EventTypeProgressCompleted EventType = "progress.completed"
	EventTypeProgressAbandoned EventType = "progress.abandoned"
	EventTypeCharacterLeveled  EventType = "character.leveled"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType      `json:"type"`
	RequestID   string         `json:"request_id,omitempty"`
	CharacterID string         `json:"character_id"`
	ProgressID  string         `json:"progress_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel for a character's events.
func Channel(characterID uuid.UUID) string {
	return "character-events:" + characterID.String()
}

// Broadcaster publishes events to Redis Pub/Sub
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, characterID uuid.UUID, requestID string, requestType string) error {
	return b.publish(ctx, characterID, Event{
		Type:      EventTypeRequestProcessing,
		RequestID: requestID,
		Data: map[string]any{
			"status": "processing",
			"type":   requestType,
		},
	})
}

// PublishRequestCompleted publishes a request.completed event
func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, characterID uuid.UUID, requestID string, result map[string]any) error {
	return b.publish(ctx, characterID, Event{
		Type:      EventTypeRequestCompleted,
		RequestID: requestID,
		Data: map[string]any{
			"status": "completed",
			"result": result,
		},
	})
}

// PublishRequestFailed publishes a request.failed event. code and message
// must already be safe to show to the player.
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, characterID uuid.UUID, requestID string, code string, message string) error {
	return b.publish(ctx, characterID, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		Data: map[string]any{
			"status": "failed",
			"code":   code,
			"error":  message,
		},
	})
}

// PublishTransition publishes one event per domain event the transition
// caused. Publishing continues past failures; the errors are joined.
func (b *Broadcaster) PublishTransition(ctx context.Context, requestID string, t *state.Transition) error {
	if t == nil || t.Character == nil {
		return nil
	}
	characterID := t.Character.Spec.ID

	var errs []error
	for _, ev := range t.Events {
		event, ok := b.fromTransition(requestID, t, ev)
		if !ok {
			continue
		}
		if err := b.publish(ctx, characterID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishLeveled publishes character.leveled for level changes made outside
// an adventure run.
func (b *Broadcaster) PublishLeveled(ctx context.Context, characterID uuid.UUID, requestID string, level, gained int) error {
	return b.publish(ctx, characterID, Event{
		Type:      EventTypeCharacterLeveled,
		RequestID: requestID,
		Data: map[string]any{
			"level":         level,
			"levels_gained": gained,
		},
	})
}

func (b *Broadcaster) fromTransition(requestID string, t *state.Transition, ev state.Event) (Event, bool) {
	event := Event{RequestID: requestID}
	if t.Progress != nil {
		event.ProgressID = t.Progress.ID.String()
	}

	switch ev.Kind {
	case state.EventStarted:
		event.Type = EventTypeProgressStarted
		event.Data = map[string]any{
			"adventure_id": t.Progress.AdventureID,
			"scene_id":     ev.SceneID,
		}
	case state.EventAdvanced:
		event.Type = EventTypeProgressAdvanced
		event.Data = map[string]any{
			"scene_id":       ev.SceneID,
			"pending_combat": t.Progress.PendingCombat,
		}
	case state.EventCombatWon, state.EventCombatLost:
		event.Type = EventTypeCombatResolved
		event.Data = map[string]any{"scene_id": ev.SceneID}
		if t.Combat != nil {
			event.Data["winner"] = string(t.Combat.Winner)
			event.Data["turns"] = t.Combat.Turns
			event.Data["xp_gained"] = t.Combat.XPGained
		}
	case state.EventCompleted:
		event.Type = EventTypeProgressCompleted
		event.Data = map[string]any{
			"scene_id":        ev.SceneID,
			"xp_earned":       t.Progress.XPEarned,
			"currency_earned": t.Progress.CurrencyEarned,
		}
	case state.EventAbandoned:
		event.Type = EventTypeProgressAbandoned
		event.Data = map[string]any{"scene_id": ev.SceneID}
	case state.EventLeveled:
		event.Type = EventTypeCharacterLeveled
		event.Data = map[string]any{"level": ev.Level}
	default:
		// combat.pending is reported through progress.advanced
		return Event{}, false
	}
	return event, true
}

func (b *Broadcaster) publish(ctx context.Context, characterID uuid.UUID, event Event) error {
	channel := Channel(characterID)
	event.CharacterID = characterID.String()

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)

	return nil
}
