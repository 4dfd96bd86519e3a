package tracking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func character(t *testing.T, level, currentXP int) *actor.Character {
	t.Helper()
	c, err := actor.NewCharacterFromSpec(&actor.CharacterSpec{
		ID: uuid.New(), Name: "Bram", Class: "warrior", Level: level, CurrentXP: currentXP, HP: 10,
	})
	require.NoError(t, err)
	return c
}

func TestLog_ScalesByLevel(t *testing.T) {
	now := time.Date(2026, 6, 1, 7, 30, 0, 0, time.UTC)
	c := character(t, 3, 0)

	res, err := Log(c, Activity{Type: "running", DurationMinutes: 20, Satisfaction: 8}, leveling.Engine{}, now)
	require.NoError(t, err)

	// 20 min * 5 = 100 nominal, * 1.2 at level 3
	assert.Equal(t, 120, res.Activity.XPEarned)
	assert.Equal(t, 120, res.Character.Spec.CurrentXP)
	assert.Equal(t, 100, res.Character.Spec.TotalXP)
	assert.Equal(t, c.Spec.ID, res.Activity.CharacterID)
	assert.NotEqual(t, uuid.Nil, res.Activity.ID)
	assert.Equal(t, now, res.Activity.CreatedAt)
	assert.Equal(t, 0, c.Spec.CurrentXP, "input must not change")
}

func TestLog_LevelsUp(t *testing.T) {
	res, err := Log(character(t, 1, 90), Activity{Type: "yoga", DurationMinutes: 10, Satisfaction: 5}, leveling.Engine{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Character.Spec.Level)
	assert.Equal(t, 40, res.Character.Spec.CurrentXP)
	assert.Equal(t, 1, res.LevelsGained)
}

func TestLog_Invalid(t *testing.T) {
	zero := 0
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name string
		a    Activity
	}{
		{"no type", Activity{DurationMinutes: 5, Satisfaction: 5}},
		{"zero duration", Activity{Type: "walk", Satisfaction: 5}},
		{"satisfaction high", Activity{Type: "walk", DurationMinutes: 5, Satisfaction: 11}},
		{"satisfaction low", Activity{Type: "walk", DurationMinutes: 5}},
		{"zero calories", Activity{Type: "walk", DurationMinutes: 5, Satisfaction: 5, Calories: &zero}},
		{"long notes", Activity{Type: "walk", DurationMinutes: 5, Satisfaction: 5, Notes: string(long)}},
		{"other character", Activity{CharacterID: uuid.New(), Type: "walk", DurationMinutes: 5, Satisfaction: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Log(character(t, 1, 0), tt.a, leveling.Engine{}, time.Now())
			assert.True(t, errors.Is(err, gameerr.ErrInvalidInput), "error = %v", err)
		})
	}
}
