package reward

import (
	"fmt"
	"math"
	"time"

	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
)

// Summary describes what one application changed.
type Summary struct {
	XP            int      `json:"xp"`
	LevelsGained  int      `json:"levels_gained"`
	Items         []string `json:"items,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	CurrencyDelta int      `json:"currency_delta"`
	AlreadyOwned  []string `json:"already_owned,omitempty"`
}

// Applicator applies rewards to characters. The zero value is usable.
type Applicator struct {
	Leveling leveling.Engine
	// Catalog, when set with StrictGrants, rejects grants the character's
	// class or level does not allow.
	Catalog      *actor.Catalog
	StrictGrants bool
	Source       string
	Now          func() time.Time
}

// Apply grants every reward to a copy of c. Either all rewards apply or c is
// returned untouched with an error.
func (a *Applicator) Apply(c *actor.Character, rewards []Reward) (*actor.Character, Summary, error) {
	if c == nil {
		return nil, Summary{}, gameerr.InvalidInput("character is required")
	}
	for i, r := range rewards {
		if err := r.Validate(); err != nil {
			return c, Summary{}, fmt.Errorf("reward %d: %w", i, err)
		}
	}

	next, err := c.Clone()
	if err != nil {
		return c, Summary{}, gameerr.Wrap(gameerr.CodeInvariantBreach, "failed to copy character", err)
	}

	v := &applyVisitor{
		app:   a,
		ch:    next,
		level: next.Spec.Level,
		at:    a.now(),
	}
	for i, r := range rewards {
		if err := r.Grant.Accept(v); err != nil {
			return c, Summary{}, fmt.Errorf("reward %d (%s): %w", i, r.Grant.Kind(), err)
		}
	}

	res, err := a.Leveling.Apply(next.Leveling(), leveling.Gain{Amount: v.pendingXP})
	if err != nil {
		return c, Summary{}, err
	}
	next.SetLeveling(res.Progress)
	v.sum.XP = v.pendingXP
	v.sum.LevelsGained = res.LevelsGained

	return next, v.sum, nil
}

func (a *Applicator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

type applyVisitor struct {
	app       *Applicator
	ch        *actor.Character
	level     int
	at        time.Time
	pendingXP int
	sum       Summary
}

func (v *applyVisitor) VisitXP(g XP) error {
	if g.Amount > math.MaxInt-v.pendingXP {
		return gameerr.InvalidInput(fmt.Sprintf("xp total overflows after %d", v.pendingXP))
	}
	v.pendingXP += g.Amount
	return nil
}

func (v *applyVisitor) VisitItem(g Item) error {
	if v.app.StrictGrants && v.app.Catalog != nil {
		eq, ok := v.app.Catalog.Equipment[g.EquipmentID]
		if !ok {
			return gameerr.NotFound(fmt.Sprintf("equipment %s", g.EquipmentID))
		}
		if err := eq.CheckOwn(v.ch); err != nil {
			return gameerr.InvalidInput(err.Error())
		}
	}
	if v.ch.GrantEquipment(g.EquipmentID, v.app.Source, v.at) {
		v.sum.Items = append(v.sum.Items, g.EquipmentID)
	} else {
		v.sum.AlreadyOwned = append(v.sum.AlreadyOwned, g.EquipmentID)
	}
	return nil
}

// VisitSkill grants at the level the character had when the event began.
func (v *applyVisitor) VisitSkill(g Skill) error {
	if v.app.StrictGrants && v.app.Catalog != nil {
		sk, ok := v.app.Catalog.Skills[g.SkillID]
		if !ok {
			return gameerr.NotFound(fmt.Sprintf("skill %s", g.SkillID))
		}
		if err := sk.CheckAcquire(v.ch); err != nil {
			return gameerr.InvalidInput(err.Error())
		}
	}
	if v.ch.GrantSkill(g.SkillID, v.level, v.at) {
		v.sum.Skills = append(v.sum.Skills, g.SkillID)
	} else {
		v.sum.AlreadyOwned = append(v.sum.AlreadyOwned, g.SkillID)
	}
	return nil
}

func (v *applyVisitor) VisitCurrency(g Currency) error {
	if g.Amount > 0 && v.ch.Spec.Currency > math.MaxInt-g.Amount {
		return gameerr.InvalidInput(fmt.Sprintf("currency overflows (%d%+d)", v.ch.Spec.Currency, g.Amount))
	}
	if v.ch.Spec.Currency+g.Amount < 0 {
		return gameerr.InvalidInput(fmt.Sprintf("currency would go negative (%d%+d)", v.ch.Spec.Currency, g.Amount))
	}
	v.ch.Spec.Currency += g.Amount
	v.sum.CurrencyDelta += g.Amount
	return nil
}
