package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/reward"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	RequestTypeStart         RequestType = "start"
	RequestTypeChoose        RequestType = "choose"
	RequestTypeResolveCombat RequestType = "resolve_combat"
	RequestTypeAbandon       RequestType = "abandon"
	RequestTypeApplyRewards  RequestType = "apply_rewards"
	RequestTypeGainXP        RequestType = "gain_xp"
	RequestTypeLogActivity   RequestType = "log_activity"
)

// Request represents a progression request in the queue. Which fields are
// used depends on Type.
type Request struct {
	RequestID   string      `json:"request_id"`
	Type        RequestType `json:"type"`
	CharacterID uuid.UUID   `json:"character_id"`

	// start
	AdventureID string `json:"adventure_id,omitempty"`

	// choose, resolve_combat, abandon
	ProgressID uuid.UUID `json:"progress_id,omitzero"`
	ChoiceID   string    `json:"choice_id,omitempty"`
	Seed       *int64    `json:"seed,omitempty"`

	// apply_rewards
	Rewards []reward.Reward `json:"rewards,omitempty"`

	// gain_xp
	Amount int  `json:"amount,omitempty"`
	Scaled bool `json:"scaled,omitempty"`

	// log_activity
	Activity *tracking.Activity `json:"activity,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate checks that the fields Type needs are present.
func (r *Request) Validate() error {
	if r.CharacterID == uuid.Nil {
		return fmt.Errorf("request %s: character_id is required", r.RequestID)
	}
	switch r.Type {
	case RequestTypeStart:
		if r.AdventureID == "" {
			return fmt.Errorf("request %s: adventure_id is required", r.RequestID)
		}
	case RequestTypeChoose:
		if r.ProgressID == uuid.Nil || r.ChoiceID == "" {
			return fmt.Errorf("request %s: progress_id and choice_id are required", r.RequestID)
		}
	case RequestTypeResolveCombat, RequestTypeAbandon:
		if r.ProgressID == uuid.Nil {
			return fmt.Errorf("request %s: progress_id is required", r.RequestID)
		}
	case RequestTypeApplyRewards:
		if len(r.Rewards) == 0 {
			return fmt.Errorf("request %s: rewards are required", r.RequestID)
		}
	case RequestTypeGainXP:
		if r.Amount < 0 {
			return fmt.Errorf("request %s: amount must be non-negative", r.RequestID)
		}
	case RequestTypeLogActivity:
		if r.Activity == nil {
			return fmt.Errorf("request %s: activity is required", r.RequestID)
		}
	default:
		return fmt.Errorf("request %s: unknown request type %q", r.RequestID, r.Type)
	}
	return nil
}

// LockKey is the key that serializes this request against others touching
// the same character.
func (r *Request) LockKey() string {
	return "character-lock:" + r.CharacterID.String()
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
