package actor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCharacter(t *testing.T) *Character {
	t.Helper()
	c, err := NewCharacterFromSpec(&CharacterSpec{
		ID:    uuid.New(),
		Name:  "Lyra",
		Class: "rogue",
		Level: 3,
		HP:    18,
		MaxHP: 24,
		Skills: []AcquiredSkill{
			{SkillID: "stealth", AcquiredLevel: 1},
		},
		Equipment: []OwnedEquipment{
			{EquipmentID: "lockpick", Equipped: true},
		},
	})
	require.NoError(t, err)
	return c
}

func TestNewCharacterFromSpec(t *testing.T) {
	c := newTestCharacter(t)
	assert.Equal(t, 18, c.HP())
	assert.Equal(t, 24, c.Actor.MaxHP())
}

func TestNewCharacterFromSpec_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec *CharacterSpec
	}{
		{"nil spec", nil},
		{"missing id", &CharacterSpec{Level: 1, HP: 5}},
		{"level zero", &CharacterSpec{ID: uuid.New(), Level: 0, HP: 5}},
		{"no hp", &CharacterSpec{ID: uuid.New(), Level: 1}},
		{"downed with max hp", &CharacterSpec{ID: uuid.New(), Level: 1, HP: 0, MaxHP: 10}},
		{"negative hp", &CharacterSpec{ID: uuid.New(), Level: 1, HP: -3, MaxHP: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCharacterFromSpec(tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestNewCharacterFromSpec_DefaultsMaxHP(t *testing.T) {
	c, err := NewCharacterFromSpec(&CharacterSpec{ID: uuid.New(), Level: 1, HP: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, c.Spec.MaxHP)
	assert.Equal(t, 12, c.HP())
}

func TestCharacter_Capabilities(t *testing.T) {
	c := newTestCharacter(t)

	assert.Equal(t, "rogue", c.GetClass())
	assert.True(t, c.HasSkill("stealth"))
	assert.True(t, c.HasSkill("Stealth"))
	assert.False(t, c.HasSkill("fireball"))
	assert.True(t, c.HasEquipment("lockpick"))
	assert.False(t, c.HasEquipment("iron_key"))

	var missing *Character
	assert.Nil(t, missing.Capabilities())
	got := conditionals.Evaluate(conditionals.Requirements{}, missing.Capabilities(), nil)
	assert.False(t, got.Available)
}

func TestCharacter_GrantsAreIdempotent(t *testing.T) {
	c := newTestCharacter(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, c.GrantSkill("stealth", 3, at))
	assert.True(t, c.GrantSkill("backstab", 3, at))
	assert.False(t, c.GrantSkill("backstab", 4, at))
	assert.Len(t, c.Spec.Skills, 2)
	assert.Equal(t, 3, c.Spec.Skills[1].AcquiredLevel)

	assert.True(t, c.GrantEquipment("iron_key", "reward", at))
	assert.False(t, c.GrantEquipment("iron_key", "reward", at))
	assert.Len(t, c.Spec.Equipment, 2)
	assert.False(t, c.Spec.Equipment[1].Equipped)
}

func TestCharacter_CloneIsIndependent(t *testing.T) {
	c := newTestCharacter(t)
	clone, err := c.Clone()
	require.NoError(t, err)

	clone.GrantSkill("backstab", 3, time.Now())
	clone.SetLeveling(leveling.Progress{CurrentXP: 10, TotalXP: 500, Level: 4})
	require.NoError(t, clone.Actor.SetHP(5))

	assert.Len(t, c.Spec.Skills, 1)
	assert.Equal(t, 3, c.Spec.Level)
	assert.Equal(t, 18, c.HP())
	assert.Equal(t, 5, clone.HP())
}

func TestCharacter_JSONRoundTrip(t *testing.T) {
	c := newTestCharacter(t)
	require.NoError(t, c.Actor.SetHP(7))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var back Character
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.Spec.ID, back.Spec.ID)
	assert.Equal(t, 7, back.HP())
	assert.True(t, back.HasEquipment("lockpick"))
}

func TestCatalog(t *testing.T) {
	cat := NewCatalog(
		[]Class{{ID: "mage", Name: "Mage"}},
		[]Skill{{ID: "fireball", Name: "Fireball", Class: "mage", UnlockAtLevel: 5}},
		[]Equipment{{ID: "staff", Name: "Oak Staff", RequiredLevel: 2, RequiredClass: "mage"}},
	)

	name, ok := cat.Name(conditionals.KindEquipment, "staff")
	assert.True(t, ok)
	assert.Equal(t, "Oak Staff", name)
	_, ok = cat.Name(conditionals.KindSkill, "unknown")
	assert.False(t, ok)

	rogue := newTestCharacter(t)
	assert.Error(t, cat.Skills["fireball"].CheckAcquire(rogue))
	assert.Error(t, cat.Equipment["staff"].CheckOwn(rogue))

	mage, err := NewCharacterFromSpec(&CharacterSpec{ID: uuid.New(), Class: "mage", Level: 5, HP: 10})
	require.NoError(t, err)
	assert.NoError(t, cat.Skills["fireball"].CheckAcquire(mage))
	assert.NoError(t, cat.Equipment["staff"].CheckOwn(mage))
}

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog("../../data/catalog.yaml")
	require.NoError(t, err)

	name, ok := cat.Name(conditionals.KindEquipment, "lockpick")
	assert.True(t, ok)
	assert.Equal(t, "Lockpick Set", name)
	assert.Equal(t, 3, cat.Skills["backstab"].UnlockAtLevel)
}

func TestLoadCatalog_Duplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "skills:\n  - id: stealth\n    name: Stealth\n  - id: stealth\n    name: Sneak\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate skill "stealth"`)
}
