package conditionals

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NoCharacterReason is reported when availability is evaluated without a character.
const NoCharacterReason = "No character selected"

// Availability is the result of evaluating a choice for one character.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Evaluate checks req against view. Class is checked first, then skill, then
// equipment; only the first unmet requirement is reported. A nil view is
// never available. namer may be nil.
func Evaluate(req Requirements, view CapabilityView, namer Namer) Availability {
	if view == nil {
		return Availability{Reason: NoCharacterReason}
	}

	if req.Class != "" && !strings.EqualFold(view.GetClass(), req.Class) {
		return unmet(KindClass, req.Class, namer)
	}
	if req.Skill != "" && !view.HasSkill(req.Skill) {
		return unmet(KindSkill, req.Skill, namer)
	}
	if req.Equipment != "" && !view.HasEquipment(req.Equipment) {
		return unmet(KindEquipment, req.Equipment, namer)
	}

	return Availability{Available: true}
}

func unmet(kind Kind, id string, namer Namer) Availability {
	return Availability{Reason: fmt.Sprintf("Require %s: %s", kind, DisplayName(kind, id, namer))}
}

var titleCaser = cases.Title(language.English)

// DisplayName returns the catalog name for id, or a title-cased form of the
// ID itself ("iron_key" -> "Iron Key").
func DisplayName(kind Kind, id string, namer Namer) string {
	if namer != nil {
		if name, ok := namer.Name(kind, id); ok && name != "" {
			return name
		}
	}
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	return titleCaser.String(strings.Join(words, " "))
}
