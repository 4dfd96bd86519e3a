// Package reward models typed grants and applies them to characters.
package reward

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"gopkg.in/yaml.v3"
)

// Kind is the reward tag.
type Kind string

const (
	KindXP       Kind = "xp"
	KindItem     Kind = "item"
	KindSkill    Kind = "skill"
	KindCurrency Kind = "currency"
)

// Grant is the payload of a Reward. The set of implementations is closed;
// handle every kind by implementing Visitor.
type Grant interface {
	Kind() Kind
	Accept(v Visitor) error
	validate() error
}

// Visitor handles each Grant kind. Adding a kind adds a method here, so
// every visitor fails to compile until it handles the new kind.
type Visitor interface {
	VisitXP(XP) error
	VisitItem(Item) error
	VisitSkill(Skill) error
	VisitCurrency(Currency) error
}

type XP struct{ Amount int }

type Item struct{ EquipmentID string }

type Skill struct{ SkillID string }

type Currency struct{ Amount int }

func (XP) Kind() Kind       { return KindXP }
func (Item) Kind() Kind     { return KindItem }
func (Skill) Kind() Kind    { return KindSkill }
func (Currency) Kind() Kind { return KindCurrency }

func (g XP) Accept(v Visitor) error       { return v.VisitXP(g) }
func (g Item) Accept(v Visitor) error     { return v.VisitItem(g) }
func (g Skill) Accept(v Visitor) error    { return v.VisitSkill(g) }
func (g Currency) Accept(v Visitor) error { return v.VisitCurrency(g) }

func (g XP) validate() error {
	if g.Amount < 0 {
		return fmt.Errorf("xp reward must be non-negative, got %d", g.Amount)
	}
	return nil
}

func (g Item) validate() error {
	if g.EquipmentID == "" {
		return fmt.Errorf("item reward requires an item")
	}
	return nil
}

func (g Skill) validate() error {
	if g.SkillID == "" {
		return fmt.Errorf("skill reward requires a skill")
	}
	return nil
}

func (Currency) validate() error { return nil }

// Reward is a described Grant.
type Reward struct {
	Description string
	Grant       Grant
}

// Validate checks that the payload matching the tag is present.
func (r Reward) Validate() error {
	if r.Grant == nil {
		return gameerr.InvalidInput("reward has no grant")
	}
	if err := r.Grant.validate(); err != nil {
		return gameerr.InvalidInput(err.Error())
	}
	return nil
}

// record is the flat wire shape shared by JSON and YAML.
type record struct {
	Type        Kind   `json:"type" yaml:"type"`
	Value       int    `json:"value,omitempty" yaml:"value,omitempty"`
	Item        string `json:"item,omitempty" yaml:"item,omitempty"`
	Skill       string `json:"skill,omitempty" yaml:"skill,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

func (r Reward) toRecord() (record, error) {
	rec := record{Description: r.Description}
	switch g := r.Grant.(type) {
	case XP:
		rec.Type, rec.Value = KindXP, g.Amount
	case Item:
		rec.Type, rec.Item = KindItem, g.EquipmentID
	case Skill:
		rec.Type, rec.Skill = KindSkill, g.SkillID
	case Currency:
		rec.Type, rec.Value = KindCurrency, g.Amount
	default:
		return rec, fmt.Errorf("unknown reward grant %T", r.Grant)
	}
	return rec, nil
}

func (rec record) toReward() (Reward, error) {
	r := Reward{Description: rec.Description}
	switch rec.Type {
	case KindXP:
		r.Grant = XP{Amount: rec.Value}
	case KindItem:
		r.Grant = Item{EquipmentID: rec.Item}
	case KindSkill:
		r.Grant = Skill{SkillID: rec.Skill}
	case KindCurrency:
		r.Grant = Currency{Amount: rec.Value}
	default:
		return r, gameerr.InvalidInput(fmt.Sprintf("unknown reward type %q", rec.Type))
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

func (r Reward) MarshalJSON() ([]byte, error) {
	rec, err := r.toRecord()
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

func (r *Reward) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal reward: %w", err)
	}
	out, err := rec.toReward()
	if err != nil {
		return err
	}
	*r = out
	return nil
}

func (r Reward) MarshalYAML() (any, error) {
	return r.toRecord()
}

func (r *Reward) UnmarshalYAML(node *yaml.Node) error {
	var rec record
	if err := node.Decode(&rec); err != nil {
		return fmt.Errorf("failed to decode reward: %w", err)
	}
	out, err := rec.toReward()
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*r = out
	return nil
}
