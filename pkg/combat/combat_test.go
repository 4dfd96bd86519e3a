package combat

import (
	"errors"
	"testing"

	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/reward"
)

// rollerFunc adapts a function to Roller.
type rollerFunc func(min, max int) int

func (f rollerFunc) Between(min, max int) int { return f(min, max) }

// scripted alternates: character draws take the first func, enemy draws the second.
func scripted(character, enemy func(min, max int) int) Roller {
	n := 0
	return rollerFunc(func(lo, hi int) int {
		n++
		if n%2 == 1 {
			return character(lo, hi)
		}
		return enemy(lo, hi)
	})
}

func highest(_, hi int) int { return hi }
func lowest(lo, _ int) int  { return lo }

func TestResolve_MaxCharacterMinEnemy(t *testing.T) {
	bounty := reward.Reward{Description: "Bandit's purse", Grant: reward.Currency{Amount: 12}}
	out, err := Resolve(
		Combatant{HP: 20, Level: 5},
		Opponent{Name: "Bandit", HP: 50, MinDamage: 1, MaxDamage: 5, XPReward: 10, Reward: &bounty},
		scripted(highest, lowest),
	)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if out.Winner != WinnerCharacter {
		t.Errorf("Winner = %s, want character", out.Winner)
	}
	if out.Turns > 5 {
		t.Errorf("Turns = %d, want at most 5", out.Turns)
	}
	if out.XPGained != 10 {
		t.Errorf("XPGained = %d, want 10", out.XPGained)
	}
	if out.EnemyHP != 0 || out.CharacterHP != 16 {
		t.Errorf("final hp character=%d enemy=%d, want 16/0", out.CharacterHP, out.EnemyHP)
	}
	if len(out.Rewards) != 1 || out.Rewards[0].Grant != (reward.Currency{Amount: 12}) {
		t.Errorf("Rewards = %+v", out.Rewards)
	}
	last := out.Rounds[len(out.Rounds)-1]
	if last.EnemyDamage != 0 {
		t.Errorf("enemy should not strike in the round it falls: %+v", last)
	}
}

func TestResolve_EnemyWins(t *testing.T) {
	out, err := Resolve(
		Combatant{HP: 6, Level: 1},
		Opponent{Name: "Ogre", HP: 40, MinDamage: 3, MaxDamage: 6, XPReward: 50, Reward: &reward.Reward{Grant: reward.XP{Amount: 5}}},
		scripted(lowest, highest),
	)
	if err != nil {
		t.Fatal(err)
	}
	if out.Winner != WinnerEnemy {
		t.Fatalf("Winner = %s, want enemy", out.Winner)
	}
	if out.XPGained != 0 || len(out.Rewards) != 0 {
		t.Errorf("loser should gain nothing: %+v", out)
	}
	if out.Turns != 1 || out.CharacterHP != 0 || out.EnemyHP != 39 {
		t.Errorf("got turns=%d hp=%d/%d", out.Turns, out.CharacterHP, out.EnemyHP)
	}
}

func TestResolve_ExactlyOneSideFalls(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		c := Combatant{HP: 5 + int(seed%20), Level: 1 + int(seed%7)}
		o := Opponent{HP: 10 + int(seed%40), MinDamage: int(seed % 3), MaxDamage: 1 + int(seed%6), XPReward: 7}
		if o.MaxDamage < o.MinDamage {
			o.MaxDamage = o.MinDamage
		}

		out, err := Resolve(c, o, NewRNG(seed))
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		charDown, enemyDown := out.CharacterHP <= 0, out.EnemyHP <= 0
		if charDown == enemyDown {
			t.Fatalf("seed %d: character hp %d, enemy hp %d", seed, out.CharacterHP, out.EnemyHP)
		}
		if enemyDown != (out.Winner == WinnerCharacter) {
			t.Fatalf("seed %d: winner %s inconsistent with hp", seed, out.Winner)
		}
		if out.Turns != len(out.Rounds) {
			t.Fatalf("seed %d: turns %d, rounds %d", seed, out.Turns, len(out.Rounds))
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	c := Combatant{HP: 30, Level: 3}
	o := Opponent{HP: 35, MinDamage: 1, MaxDamage: 6, XPReward: 15}

	a, err := Resolve(c, o, NewRNG(42))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Resolve(c, o, NewRNG(42))
	if err != nil {
		t.Fatal(err)
	}
	if a.Turns != b.Turns || a.CharacterHP != b.CharacterHP || a.EnemyHP != b.EnemyHP || a.Winner != b.Winner {
		t.Errorf("same seed produced %+v and %+v", a, b)
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	valid := Opponent{HP: 10, MinDamage: 1, MaxDamage: 2}
	tests := []struct {
		name string
		c    Combatant
		o    Opponent
		rng  Roller
	}{
		{"nil rng", Combatant{HP: 5, Level: 1}, valid, nil},
		{"dead character", Combatant{HP: 0, Level: 1}, valid, NewRNG(1)},
		{"level zero", Combatant{HP: 5, Level: 0}, valid, NewRNG(1)},
		{"enemy no hp", Combatant{HP: 5, Level: 1}, Opponent{HP: 0, MaxDamage: 1}, NewRNG(1)},
		{"enemy max below one", Combatant{HP: 5, Level: 1}, Opponent{HP: 3, MaxDamage: 0}, NewRNG(1)},
		{"enemy inverted range", Combatant{HP: 5, Level: 1}, Opponent{HP: 3, MinDamage: 4, MaxDamage: 2}, NewRNG(1)},
		{"bad reward", Combatant{HP: 5, Level: 1}, Opponent{HP: 3, MaxDamage: 2, Reward: &reward.Reward{Grant: reward.Item{}}}, NewRNG(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.c, tt.o, tt.rng)
			if !errors.Is(err, gameerr.ErrInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestRNG_Between(t *testing.T) {
	rng := NewRNG(7)
	for i := 0; i < 1000; i++ {
		v := rng.Between(3, 5)
		if v < 3 || v > 5 {
			t.Fatalf("Between(3,5) = %d", v)
		}
	}
	if rng.Position() != 1000 {
		t.Errorf("Position() = %d", rng.Position())
	}
	if got := rng.Between(4, 4); got != 4 {
		t.Errorf("Between(4,4) = %d", got)
	}
	if rng.Seed() != 7 {
		t.Errorf("Seed() = %d", rng.Seed())
	}
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSeed()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("two seeds collided: %d", a)
	}
}
