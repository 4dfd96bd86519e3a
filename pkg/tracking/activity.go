// Package tracking logs real-world activities as multiplier-eligible
// experience.
package tracking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
	"github.com/jwebster45206/quest-engine/pkg/validation"
)

// XPPerMinute is the nominal experience earned per minute of activity.
const XPPerMinute = 5

// Activity is one logged session.
type Activity struct {
	ID              uuid.UUID `json:"id"`
	CharacterID     uuid.UUID `json:"character_id" validate:"required"`
	Type            string    `json:"activity_type" validate:"required"`
	Category        string    `json:"category,omitempty"`
	DurationMinutes int       `json:"duration_minutes" validate:"min=1"`
	Calories        *int      `json:"calories,omitempty" validate:"omitnil,min=1"`
	Satisfaction    int       `json:"satisfaction" validate:"min=1,max=10"`
	Notes           string    `json:"notes,omitempty" validate:"max=500"`
	XPEarned        int       `json:"xp_earned"`
	CreatedAt       time.Time `json:"created_at"`
}

// BaseXP returns the nominal xp for minutes of activity, before the level
// multiplier.
func BaseXP(minutes int) int {
	return minutes * XPPerMinute
}

// Result is the outcome of logging an activity.
type Result struct {
	Character    *actor.Character `json:"character"`
	Activity     Activity         `json:"activity"`
	LevelsGained int              `json:"levels_gained"`
}

// Log credits a to c through engine as a scaled gain. c is not mutated.
func Log(c *actor.Character, a Activity, engine leveling.Engine, now time.Time) (Result, error) {
	if c == nil {
		return Result{}, gameerr.InvalidInput("character is required")
	}
	if a.CharacterID == uuid.Nil {
		a.CharacterID = c.Spec.ID
	}
	if a.CharacterID != c.Spec.ID {
		return Result{}, gameerr.InvalidInput("activity belongs to a different character")
	}
	if err := validation.Struct(a); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return Result{}, gameerr.InvalidInput(fe.Error())
		}
		return Result{}, gameerr.InvalidInput(err.Error())
	}

	res, err := engine.Apply(c.Leveling(), leveling.Gain{Amount: BaseXP(a.DurationMinutes), Scaled: true})
	if err != nil {
		return Result{}, err
	}

	next, err := c.Clone()
	if err != nil {
		return Result{}, fmt.Errorf("failed to copy character: %w", err)
	}
	next.SetLeveling(res.Progress)

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.XPEarned = res.Credited
	a.CreatedAt = now

	return Result{Character: next, Activity: a, LevelsGained: res.LevelsGained}, nil
}
