package conditionals

// Requirements gate a choice on character capabilities. Empty fields impose
// no requirement. Values are catalog IDs.
type Requirements struct {
	Class     string `json:"required_class,omitempty" yaml:"required_class,omitempty"`
	Skill     string `json:"required_skill,omitempty" yaml:"required_skill,omitempty"`
	Equipment string `json:"required_equipment,omitempty" yaml:"required_equipment,omitempty"`
}

// IsZero reports whether no requirement is set.
func (r Requirements) IsZero() bool {
	return r.Class == "" && r.Skill == "" && r.Equipment == ""
}

// CapabilityView provides the minimal interface needed to evaluate requirements.
// This avoids import cycles with the actor package.
type CapabilityView interface {
	GetClass() string
	HasSkill(skillID string) bool
	HasEquipment(equipmentID string) bool
}

// Kind names a requirement category.
type Kind string

const (
	KindClass     Kind = "class"
	KindSkill     Kind = "skill"
	KindEquipment Kind = "equipment"
)

// Namer resolves display names for catalog IDs.
type Namer interface {
	Name(kind Kind, id string) (string, bool)
}
