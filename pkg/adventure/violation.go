package adventure

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/gameerr"
)

// Rule names the structural invariant a mutation broke.
type Rule string

const (
	RuleInvalidField        Rule = "invalid_field"
	RuleOrderConflict       Rule = "order_conflict"
	RuleDuplicateStart      Rule = "duplicate_start"
	RuleMissingEnemy        Rule = "missing_enemy"
	RuleUnknownEnemy        Rule = "unknown_enemy"
	RuleFightEndConflict    Rule = "fight_end_conflict"
	RuleMissingNextScene    Rule = "missing_next_scene"
	RuleExtraneousNextScene Rule = "extraneous_next_scene"
	RuleCrossAdventure      Rule = "cross_adventure"
	RuleUnknownScene        Rule = "unknown_scene"
	RuleChoiceOrderConflict Rule = "choice_order_conflict"
	RuleMissingStart        Rule = "missing_start"
	RuleMissingEnd          Rule = "missing_end"
)

// GraphViolation is a rejected mutation.
type GraphViolation struct {
	Rule     Rule   `json:"rule"`
	EntityID string `json:"entity_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Reason   string `json:"reason"`
}

func violation(rule Rule, entityID, field, format string, args ...any) *GraphViolation {
	return &GraphViolation{Rule: rule, EntityID: entityID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (v *GraphViolation) Error() string {
	if v.EntityID != "" {
		return fmt.Sprintf("graph violation %s on %s: %s", v.Rule, v.EntityID, v.Reason)
	}
	return fmt.Sprintf("graph violation %s: %s", v.Rule, v.Reason)
}

func (v *GraphViolation) ErrorCode() gameerr.Code { return gameerr.CodeGraphViolation }

func (v *GraphViolation) PublicReason() string { return v.Reason }

// Is matches gameerr.ErrGraphViolation.
func (v *GraphViolation) Is(target error) bool {
	t, ok := target.(*gameerr.Error)
	return ok && t.Code == gameerr.CodeGraphViolation && (t.Reason == "" || t.Reason == v.Reason)
}

// ValidationError collects every violation found in a whole-graph check.
type ValidationError struct {
	Violations []*GraphViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Violations), strings.Join(msgs, "\n  "))
}

func (e *ValidationError) ErrorCode() gameerr.Code { return gameerr.CodeGraphViolation }

func (e *ValidationError) PublicReason() string {
	reasons := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		reasons[i] = v.Reason
	}
	return strings.Join(reasons, "; ")
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*gameerr.Error)
	return ok && t.Code == gameerr.CodeGraphViolation && t.Reason == ""
}

func (e *ValidationError) add(v *GraphViolation) {
	e.Violations = append(e.Violations, v)
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
