package state

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
)

// Progress is a character's run through one adventure.
type Progress struct {
	ID             uuid.UUID  `json:"id"`
	CharacterID    uuid.UUID  `json:"character_id"`
	AdventureID    string     `json:"adventure_id"`
	CurrentScene   string     `json:"current_scene"`
	Completed      bool       `json:"completed"`
	Abandoned      bool       `json:"abandoned,omitempty"`
	PendingCombat  bool       `json:"pending_combat"`
	XPEarned       int        `json:"xp_earned"`
	CurrencyEarned int        `json:"currency_earned"`
	Path           []string   `json:"path,omitempty"` // scenes entered, in order
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int64      `json:"version"`
}

// Status reports where p is in its lifecycle. A nil progress has not started.
func (p *Progress) Status() Status {
	switch {
	case p == nil:
		return StatusNotStarted
	case p.Completed:
		return StatusCompleted
	default:
		return StatusActive
	}
}

// IsActive reports whether p is an unfinished run.
func (p *Progress) IsActive() bool {
	return p.Status() == StatusActive
}

// Clone returns a deep copy of p.
func (p *Progress) Clone() *Progress {
	out := *p
	out.Path = slices.Clone(p.Path)
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// FindActive returns the active run for the pair among runs, if any.
func FindActive(runs []*Progress, characterID uuid.UUID, adventureID string) *Progress {
	for _, p := range runs {
		if p != nil && p.CharacterID == characterID && p.AdventureID == adventureID && p.IsActive() {
			return p
		}
	}
	return nil
}
