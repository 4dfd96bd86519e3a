// Package leveling converts experience gains into normalized level state.
// Every xp grant path (activity logging, combat, adventure completion) routes
// through Engine.Apply.
package leveling

import (
	"fmt"
	"math"

	"github.com/jwebster45206/quest-engine/pkg/gameerr"
)

// DefaultMaxLevelUps caps a single normalization. It is a safety net, not a
// game rule.
const DefaultMaxLevelUps = 1000

// Progress is a character's experience state.
type Progress struct {
	CurrentXP int `json:"current_xp"`
	TotalXP   int `json:"total_xp"`
	Level     int `json:"level"`
}

// Gain is one experience grant. Scaled marks a gain from a multiplier-eligible
// source such as a tracked activity; reward xp is never scaled.
type Gain struct {
	Amount int  `json:"amount"`
	Scaled bool `json:"scaled"`
}

// Result is the outcome of applying a Gain.
type Result struct {
	Progress     Progress `json:"progress"`
	Credited     int      `json:"credited"`
	LevelsGained int      `json:"levels_gained"`
}

// XPForNextLevel returns the xp needed to advance from level.
func XPForNextLevel(level int) int {
	return level * 100
}

// Multiplier returns the xp multiplier for level: 1.0 + (level-1) * 0.1.
func Multiplier(level int) float64 {
	return 1.0 + float64(level-1)*0.1
}

// Scale applies the level multiplier to amount, truncating toward zero.
// Integer arithmetic keeps the result exact where float math would drift
// (e.g. 50 * 1.1 = 55.000000000000007).
func Scale(amount, level int) int {
	return amount * (10 + level - 1) / 10
}

// Engine normalizes experience gains.
type Engine struct {
	MaxLevelUps int
}

// Normalize applies gain to p with the default Engine.
func Normalize(p Progress, gain Gain) (Progress, error) {
	r, err := Engine{}.Apply(p, gain)
	if err != nil {
		return p, err
	}
	return r.Progress, nil
}

// Apply adds gain to p and levels up while the current xp meets the threshold.
func (e Engine) Apply(p Progress, gain Gain) (Result, error) {
	if err := validate(p, gain); err != nil {
		return Result{Progress: p}, err
	}
	if gain.Amount == 0 {
		return Result{Progress: p}, nil
	}

	credited := gain.Amount
	if gain.Scaled {
		credited = Scale(gain.Amount, p.Level)
	}

	maxLevelUps := e.MaxLevelUps
	if maxLevelUps <= 0 {
		maxLevelUps = DefaultMaxLevelUps
	}

	out := p
	out.CurrentXP += credited
	out.TotalXP += gain.Amount

	levels := 0
	for out.CurrentXP >= XPForNextLevel(out.Level) {
		if levels == maxLevelUps {
			return Result{Progress: p}, gameerr.InvariantBreach(fmt.Sprintf(
				"level-up cap of %d exceeded (level %d, current xp %d)", maxLevelUps, out.Level, out.CurrentXP))
		}
		out.CurrentXP -= XPForNextLevel(out.Level)
		out.Level++
		levels++
	}

	return Result{Progress: out, Credited: credited, LevelsGained: levels}, nil
}

func validate(p Progress, gain Gain) error {
	switch {
	case gain.Amount < 0:
		return gameerr.InvalidInput(fmt.Sprintf("xp gain must be non-negative, got %d", gain.Amount))
	case p.Level < 1:
		return gameerr.InvalidInput(fmt.Sprintf("level must be at least 1, got %d", p.Level))
	case p.CurrentXP < 0 || p.TotalXP < 0:
		return gameerr.InvalidInput("xp values must be non-negative")
	case gain.Amount > MaxGain(p, gain.Scaled):
		return gameerr.InvalidInput(fmt.Sprintf("xp gain %d is too large", gain.Amount))
	}
	return nil
}

// MaxGain returns the largest amount p can absorb without overflowing its
// counters. p must already be valid.
func MaxGain(p Progress, scaled bool) int {
	room := math.MaxInt - p.TotalXP
	if scaled {
		return min(room, (math.MaxInt-p.CurrentXP)/(10+p.Level-1))
	}
	return min(room, math.MaxInt-p.CurrentXP)
}
