package actor

import (
	"fmt"
	"os"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"gopkg.in/yaml.v3"
)

// Class is a playable character class.
type Class struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Skill is a learnable ability, optionally restricted to one class.
type Skill struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Class         string `json:"class,omitempty" yaml:"class,omitempty"`
	UnlockAtLevel int    `json:"unlock_at_level" yaml:"unlock_at_level"`
}

// IsUsable reports whether a character of level may use the skill.
func (s Skill) IsUsable(level int) bool {
	return level >= s.UnlockAtLevel
}

// CheckAcquire reports why c cannot learn s, or nil.
func (s Skill) CheckAcquire(c *Character) error {
	if s.Class != "" && !strings.EqualFold(s.Class, c.Spec.Class) {
		return fmt.Errorf("skill %s is reserved for class %s", s.ID, s.Class)
	}
	if !s.IsUsable(c.Spec.Level) {
		return fmt.Errorf("skill %s unlocks at level %d", s.ID, s.UnlockAtLevel)
	}
	return nil
}

// Equipment is an ownable item.
type Equipment struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Slot          string `json:"slot,omitempty" yaml:"slot,omitempty"`
	RequiredLevel int    `json:"required_level" yaml:"required_level"`
	RequiredClass string `json:"required_class,omitempty" yaml:"required_class,omitempty"`
}

// CheckOwn reports why c cannot hold e, or nil.
func (e Equipment) CheckOwn(c *Character) error {
	if e.RequiredClass != "" && !strings.EqualFold(e.RequiredClass, c.Spec.Class) {
		return fmt.Errorf("equipment %s is reserved for class %s", e.ID, e.RequiredClass)
	}
	if c.Spec.Level < e.RequiredLevel {
		return fmt.Errorf("equipment %s requires level %d", e.ID, e.RequiredLevel)
	}
	return nil
}

// Catalog indexes classes, skills and equipment by ID.
type Catalog struct {
	Classes   map[string]Class
	Skills    map[string]Skill
	Equipment map[string]Equipment
}

// NewCatalog builds a Catalog from lists.
func NewCatalog(classes []Class, skills []Skill, equipment []Equipment) *Catalog {
	c := &Catalog{
		Classes:   make(map[string]Class, len(classes)),
		Skills:    make(map[string]Skill, len(skills)),
		Equipment: make(map[string]Equipment, len(equipment)),
	}
	for _, cl := range classes {
		c.Classes[cl.ID] = cl
	}
	for _, s := range skills {
		c.Skills[s.ID] = s
	}
	for _, e := range equipment {
		c.Equipment[e.ID] = e
	}
	return c
}

type catalogFile struct {
	Classes   []Class     `yaml:"classes"`
	Skills    []Skill     `yaml:"skills"`
	Equipment []Equipment `yaml:"equipment"`
}

// LoadCatalog reads a YAML catalog file with classes, skills and equipment
// lists. IDs must be unique within each list.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	seen := make(map[string]bool)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("catalog %s: %s with empty id", path, kind)
		}
		if seen[kind+":"+id] {
			return fmt.Errorf("catalog %s: duplicate %s %q", path, kind, id)
		}
		seen[kind+":"+id] = true
		return nil
	}
	for _, c := range f.Classes {
		if err := check("class", c.ID); err != nil {
			return nil, err
		}
	}
	for _, s := range f.Skills {
		if err := check("skill", s.ID); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Equipment {
		if err := check("equipment", e.ID); err != nil {
			return nil, err
		}
	}
	return NewCatalog(f.Classes, f.Skills, f.Equipment), nil
}

// Name implements conditionals.Namer
func (c *Catalog) Name(kind conditionals.Kind, id string) (string, bool) {
	if c == nil {
		return "", false
	}
	switch kind {
	case conditionals.KindClass:
		cl, ok := c.Classes[id]
		return cl.Name, ok
	case conditionals.KindSkill:
		s, ok := c.Skills[id]
		return s.Name, ok
	case conditionals.KindEquipment:
		e, ok := c.Equipment[id]
		return e.Name, ok
	}
	return "", false
}
