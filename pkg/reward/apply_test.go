package reward

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

func newCharacter(t *testing.T, level, currentXP, totalXP int) *actor.Character {
	t.Helper()
	c, err := actor.NewCharacterFromSpec(&actor.CharacterSpec{
		ID:        uuid.New(),
		Class:     "warrior",
		Level:     level,
		CurrentXP: currentXP,
		TotalXP:   totalXP,
		HP:        20,
		Currency:  10,
		Equipment: []actor.OwnedEquipment{{EquipmentID: "sword"}},
	})
	require.NoError(t, err)
	return c
}

func TestApply_AllKinds(t *testing.T) {
	app := &Applicator{Now: fixedNow, Source: "combat"}
	in := newCharacter(t, 2, 150, 250)

	out, sum, err := app.Apply(in, []Reward{
		{Grant: XP{Amount: 30}},
		{Grant: XP{Amount: 30}},
		{Grant: Item{EquipmentID: "shield"}},
		{Grant: Item{EquipmentID: "sword"}},
		{Grant: Skill{SkillID: "cleave"}},
		{Grant: Currency{Amount: 15}},
	})
	require.NoError(t, err)

	// 150 + 60 unscaled crosses the 200 threshold at level 2.
	assert.Equal(t, 3, out.Spec.Level)
	assert.Equal(t, 10, out.Spec.CurrentXP)
	assert.Equal(t, 310, out.Spec.TotalXP)
	assert.Equal(t, 25, out.Spec.Currency)
	assert.True(t, out.HasEquipment("shield"))
	assert.Len(t, out.Spec.Equipment, 2)
	require.True(t, out.HasSkill("cleave"))
	assert.Equal(t, 2, out.Spec.Skills[0].AcquiredLevel)
	assert.Equal(t, "combat", out.Spec.Equipment[1].AcquiredFrom)

	assert.Equal(t, Summary{
		XP:            60,
		LevelsGained:  1,
		Items:         []string{"shield"},
		Skills:        []string{"cleave"},
		CurrencyDelta: 15,
		AlreadyOwned:  []string{"sword"},
	}, sum)

	// input untouched
	assert.Equal(t, 2, in.Spec.Level)
	assert.False(t, in.HasEquipment("shield"))
	assert.Equal(t, 10, in.Spec.Currency)
}

func TestApply_XPIsNotScaled(t *testing.T) {
	app := &Applicator{Now: fixedNow}
	out, _, err := app.Apply(newCharacter(t, 5, 0, 1000), []Reward{{Grant: XP{Amount: 100}}})
	require.NoError(t, err)
	assert.Equal(t, 100, out.Spec.CurrentXP)
}

func TestApply_ReplayIsNoOp(t *testing.T) {
	app := &Applicator{Now: fixedNow}
	rewards := []Reward{{Grant: Item{EquipmentID: "amulet"}}, {Grant: Skill{SkillID: "ward"}}}

	once, _, err := app.Apply(newCharacter(t, 1, 0, 0), rewards)
	require.NoError(t, err)
	twice, sum, err := app.Apply(once, rewards)
	require.NoError(t, err)

	assert.Len(t, twice.Spec.Equipment, 2)
	assert.Len(t, twice.Spec.Skills, 1)
	assert.Empty(t, sum.Items)
	assert.ElementsMatch(t, []string{"amulet", "ward"}, sum.AlreadyOwned)
}

func TestApply_AllOrNothing(t *testing.T) {
	cat := actor.NewCatalog(nil,
		[]actor.Skill{{ID: "fireball", Class: "mage", UnlockAtLevel: 1}},
		[]actor.Equipment{{ID: "shield", RequiredLevel: 1}},
	)
	app := &Applicator{Now: fixedNow, Catalog: cat, StrictGrants: true}
	in := newCharacter(t, 1, 0, 0)

	out, _, err := app.Apply(in, []Reward{
		{Grant: XP{Amount: 500}},
		{Grant: Item{EquipmentID: "shield"}},
		{Grant: Skill{SkillID: "fireball"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gameerr.ErrInvalidInput))
	assert.Same(t, in, out)
	assert.Equal(t, 1, in.Spec.Level)
	assert.False(t, in.HasEquipment("shield"))
}

func TestApply_RejectsInvalidReward(t *testing.T) {
	app := &Applicator{}
	in := newCharacter(t, 1, 0, 0)
	_, _, err := app.Apply(in, []Reward{{Grant: XP{Amount: 5}}, {Grant: Item{}}})
	assert.ErrorIs(t, err, gameerr.ErrInvalidInput)

	_, _, err = app.Apply(in, []Reward{{Grant: Currency{Amount: -11}}})
	assert.ErrorIs(t, err, gameerr.ErrInvalidInput)
}

func TestApply_RejectsXPOverflow(t *testing.T) {
	app := &Applicator{Now: fixedNow}
	in := newCharacter(t, 1, 0, 0)

	out, _, err := app.Apply(in, []Reward{
		{Grant: XP{Amount: math.MaxInt}},
		{Grant: XP{Amount: 1}},
	})
	assert.ErrorIs(t, err, gameerr.ErrInvalidInput)
	assert.Same(t, in, out)

	seasoned := newCharacter(t, 1, 10, 10)
	_, _, err = app.Apply(seasoned, []Reward{{Grant: XP{Amount: math.MaxInt - 5}}})
	assert.ErrorIs(t, err, gameerr.ErrInvalidInput)
	assert.Equal(t, 10, seasoned.Spec.TotalXP)
}

func TestApply_Empty(t *testing.T) {
	app := &Applicator{}
	in := newCharacter(t, 1, 10, 10)
	out, sum, err := app.Apply(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in.Spec.CurrentXP, out.Spec.CurrentXP)
	assert.Zero(t, sum.XP)
}
