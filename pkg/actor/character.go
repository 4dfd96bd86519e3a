package actor

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
)

// Combat here is damage-range based, so every character shares one armor class.
const baseArmorClass = 10

// AcquiredSkill records a skill a character has learned.
type AcquiredSkill struct {
	SkillID       string    `json:"skill_id"`
	AcquiredLevel int       `json:"acquired_level"`
	AcquiredAt    time.Time `json:"acquired_at"`
}

// OwnedEquipment records an item a character owns.
type OwnedEquipment struct {
	EquipmentID  string    `json:"equipment_id"`
	Equipped     bool      `json:"equipped"`
	AcquiredFrom string    `json:"acquired_from,omitempty"`
	AcquiredAt   time.Time `json:"acquired_at"`
}

// CharacterSpec is the serializable state of a character
type CharacterSpec struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Class     string           `json:"class"`
	Race      string           `json:"race,omitempty"`
	Level     int              `json:"level"`
	CurrentXP int              `json:"current_xp"`
	TotalXP   int              `json:"total_xp"`
	HP        int              `json:"hp"`
	MaxHP     int              `json:"max_hp"`
	Currency  int              `json:"currency"`
	Skills    []AcquiredSkill  `json:"skills,omitempty"`
	Equipment []OwnedEquipment `json:"equipment,omitempty"`
	Version   int64            `json:"version"`
}

// Character is the runtime representation of a character
type Character struct {
	Spec  *CharacterSpec
	Actor *d20.Actor // Built at runtime from CharacterSpec
}

// NewCharacterFromSpec creates a Character from a CharacterSpec.
// A missing max HP defaults to the current HP.
func NewCharacterFromSpec(spec *CharacterSpec) (*Character, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec cannot be nil")
	}
	if spec.ID == uuid.Nil {
		return nil, fmt.Errorf("character id is required")
	}
	if spec.Level < 1 {
		return nil, fmt.Errorf("character level must be at least 1, got %d", spec.Level)
	}
	if spec.MaxHP == 0 {
		spec.MaxHP = spec.HP
	}
	if spec.MaxHP < 1 {
		return nil, fmt.Errorf("character max hp must be at least 1, got %d", spec.MaxHP)
	}
	if spec.HP < 1 {
		return nil, fmt.Errorf("character hp must be at least 1, got %d", spec.HP)
	}
	if spec.HP > spec.MaxHP {
		spec.HP = spec.MaxHP
	}

	actor, err := d20.NewActor(spec.ID.String()).
		WithHP(spec.MaxHP).
		WithAC(baseArmorClass).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	// Set current HP if different from max
	if spec.HP != spec.MaxHP {
		if err := actor.SetHP(spec.HP); err != nil {
			return nil, fmt.Errorf("failed to set HP: %w", err)
		}
	}

	return &Character{Spec: spec, Actor: actor}, nil
}

// HP returns live hit points.
func (c *Character) HP() int {
	if c.Actor != nil {
		return c.Actor.HP()
	}
	return c.Spec.HP
}

// GetClass implements conditionals.CapabilityView
func (c *Character) GetClass() string { return c.Spec.Class }

// HasSkill implements conditionals.CapabilityView
func (c *Character) HasSkill(skillID string) bool {
	return slices.ContainsFunc(c.Spec.Skills, func(s AcquiredSkill) bool {
		return strings.EqualFold(s.SkillID, skillID)
	})
}

// HasEquipment implements conditionals.CapabilityView
func (c *Character) HasEquipment(equipmentID string) bool {
	return slices.ContainsFunc(c.Spec.Equipment, func(e OwnedEquipment) bool {
		return strings.EqualFold(e.EquipmentID, equipmentID)
	})
}

// Capabilities returns c as a CapabilityView. A nil character yields a nil
// view so evaluation reports it as missing.
func (c *Character) Capabilities() conditionals.CapabilityView {
	if c == nil || c.Spec == nil {
		return nil
	}
	return c
}

// Leveling returns the character's experience state.
func (c *Character) Leveling() leveling.Progress {
	return leveling.Progress{
		CurrentXP: c.Spec.CurrentXP,
		TotalXP:   c.Spec.TotalXP,
		Level:     c.Spec.Level,
	}
}

// SetLeveling stores p on the character.
func (c *Character) SetLeveling(p leveling.Progress) {
	c.Spec.CurrentXP = p.CurrentXP
	c.Spec.TotalXP = p.TotalXP
	c.Spec.Level = p.Level
}

// GrantSkill adds skillID at level. It reports false when the skill is already known.
func (c *Character) GrantSkill(skillID string, level int, at time.Time) bool {
	if c.HasSkill(skillID) {
		return false
	}
	c.Spec.Skills = append(c.Spec.Skills, AcquiredSkill{
		SkillID:       skillID,
		AcquiredLevel: level,
		AcquiredAt:    at,
	})
	return true
}

// GrantEquipment adds equipmentID unequipped. It reports false when the item is already owned.
func (c *Character) GrantEquipment(equipmentID, source string, at time.Time) bool {
	if c.HasEquipment(equipmentID) {
		return false
	}
	c.Spec.Equipment = append(c.Spec.Equipment, OwnedEquipment{
		EquipmentID:  equipmentID,
		AcquiredFrom: source,
		AcquiredAt:   at,
	})
	return true
}

// Clone returns a deep copy with its own actor.
func (c *Character) Clone() (*Character, error) {
	spec := *c.Spec
	spec.HP = c.HP()
	spec.Skills = slices.Clone(c.Spec.Skills)
	spec.Equipment = slices.Clone(c.Spec.Equipment)
	return NewCharacterFromSpec(&spec)
}

// MarshalJSON serializes the spec with live HP from the actor
func (c *Character) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	spec := *c.Spec
	if c.Actor != nil {
		spec.HP = c.Actor.HP()
		spec.MaxHP = c.Actor.MaxHP()
	}
	return json.Marshal(spec)
}

// UnmarshalJSON rebuilds the character and its actor from spec JSON
func (c *Character) UnmarshalJSON(data []byte) error {
	var spec CharacterSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to unmarshal character spec: %w", err)
	}
	built, err := NewCharacterFromSpec(&spec)
	if err != nil {
		return err
	}
	*c = *built
	return nil
}
