// Package combat resolves one character against one enemy in alternating
// rounds.
package combat

import (
	"fmt"

	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/reward"
)

type Winner string

const (
	WinnerCharacter Winner = "character"
	WinnerEnemy     Winner = "enemy"
)

// Combatant is the character's snapshot entering combat.
type Combatant struct {
	HP    int `json:"hp"`
	Level int `json:"level"`
}

// Opponent is the enemy's snapshot entering combat.
type Opponent struct {
	Name      string         `json:"name"`
	HP        int            `json:"hp"`
	MinDamage int            `json:"min_damage"`
	MaxDamage int            `json:"max_damage"`
	XPReward  int            `json:"xp_reward"`
	Reward    *reward.Reward `json:"reward,omitempty"`
}

// Round records one exchange. EnemyDamage is zero when the enemy fell first.
type Round struct {
	Number          int `json:"number"`
	CharacterDamage int `json:"character_damage"`
	EnemyHP         int `json:"enemy_hp"`
	EnemyDamage     int `json:"enemy_damage"`
	CharacterHP     int `json:"character_hp"`
}

// Outcome is the result of a resolution.
type Outcome struct {
	CharacterHP int             `json:"character_hp"`
	EnemyHP     int             `json:"enemy_hp"`
	Turns       int             `json:"turns"`
	Winner      Winner          `json:"winner"`
	XPGained    int             `json:"xp_gained"`
	Rewards     []reward.Reward `json:"rewards,omitempty"`
	Rounds      []Round         `json:"rounds"`
}

// CharacterDamageRange returns the character's damage range at level.
func CharacterDamageRange(level int) (int, int) {
	return 1, level * 2
}

// Resolve runs the combat loop. The character strikes first each round;
// Turns counts rounds begun. Neither input is mutated.
func Resolve(c Combatant, o Opponent, rng Roller) (Outcome, error) {
	if err := validate(c, o, rng); err != nil {
		return Outcome{}, err
	}

	minHit, maxHit := CharacterDamageRange(c.Level)
	out := Outcome{CharacterHP: c.HP, EnemyHP: o.HP}

	for out.CharacterHP > 0 && out.EnemyHP > 0 {
		out.Turns++
		round := Round{Number: out.Turns}

		round.CharacterDamage = clamp(rng.Between(minHit, maxHit), minHit, maxHit)
		out.EnemyHP -= round.CharacterDamage
		round.EnemyHP = out.EnemyHP

		if out.EnemyHP <= 0 {
			round.CharacterHP = out.CharacterHP
			out.Rounds = append(out.Rounds, round)
			out.Winner = WinnerCharacter
			out.XPGained = o.XPReward
			if o.Reward != nil {
				out.Rewards = append(out.Rewards, *o.Reward)
			}
			break
		}

		round.EnemyDamage = clamp(rng.Between(o.MinDamage, o.MaxDamage), o.MinDamage, o.MaxDamage)
		out.CharacterHP -= round.EnemyDamage
		round.CharacterHP = out.CharacterHP
		out.Rounds = append(out.Rounds, round)

		if out.CharacterHP <= 0 {
			out.Winner = WinnerEnemy
			break
		}
	}

	return out, nil
}

func validate(c Combatant, o Opponent, rng Roller) error {
	switch {
	case rng == nil:
		return gameerr.InvalidInput("combat requires a random source")
	case c.HP < 1:
		return gameerr.InvalidInput(fmt.Sprintf("character hp must be at least 1, got %d", c.HP))
	case c.Level < 1:
		return gameerr.InvalidInput(fmt.Sprintf("character level must be at least 1, got %d", c.Level))
	case o.HP < 1:
		return gameerr.InvalidInput(fmt.Sprintf("enemy hp must be at least 1, got %d", o.HP))
	case o.MinDamage < 0:
		return gameerr.InvalidInput(fmt.Sprintf("enemy min damage must be non-negative, got %d", o.MinDamage))
	case o.MaxDamage < 1 || o.MaxDamage < o.MinDamage:
		return gameerr.InvalidInput(fmt.Sprintf("enemy damage range [%d, %d] is invalid", o.MinDamage, o.MaxDamage))
	case o.XPReward < 0:
		return gameerr.InvalidInput(fmt.Sprintf("enemy xp reward must be non-negative, got %d", o.XPReward))
	}
	if o.Reward != nil {
		if err := o.Reward.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
