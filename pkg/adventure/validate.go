package adventure

import (
	"cmp"
	"slices"
)

// ValidateEnemy checks enemy field constraints.
func (g *Graph) ValidateEnemy(e Enemy) error {
	if err := checkFields(e.ID, e); err != nil {
		return err
	}
	if e.Reward != nil {
		if err := e.Reward.Validate(); err != nil {
			return violation(RuleInvalidField, e.ID, "reward", "%s", err)
		}
	}
	return nil
}

// ValidateScene checks s as an insert or update against the current graph.
// It never mutates the graph.
func (g *Graph) ValidateScene(s Scene) error {
	if err := checkFields(s.ID, s); err != nil {
		return err
	}
	if s.AdventureID != g.meta.ID {
		return violation(RuleCrossAdventure, s.ID, "adventure_id",
			"scene belongs to adventure %s, not %s", s.AdventureID, g.meta.ID)
	}

	// Deterministic reporting when several scenes conflict.
	for _, other := range g.sortedScenes() {
		if other.ID == s.ID {
			continue
		}
		if other.Order == s.Order {
			return violation(RuleOrderConflict, s.ID, "order",
				"A scene with that order already exists: '%s'. The order must be unique within an adventure.", other.Title)
		}
		if s.IsStart && other.IsStart {
			return violation(RuleDuplicateStart, s.ID, "is_start",
				"A starting scene already exists: '%s'. An adventure can only have one starting scene.", other.Title)
		}
	}

	if s.IsFight && s.IsEnd {
		return violation(RuleFightEndConflict, s.ID, "is_end", "A fight scene cannot be an end scene.")
	}
	if s.IsFight && s.EnemyID == "" {
		return violation(RuleMissingEnemy, s.ID, "enemy", "A fight scene must have an enemy.")
	}
	if s.EnemyID != "" {
		if _, ok := g.enemies[s.EnemyID]; !ok {
			return violation(RuleUnknownEnemy, s.ID, "enemy", "enemy %s does not exist in this adventure", s.EnemyID)
		}
	}

	if err := g.checkSceneRef(s, "previous_scene", s.PreviousScene); err != nil {
		return err
	}
	if err := g.checkSceneRef(s, "next_scene", s.NextScene); err != nil {
		return err
	}

	// An existing scene changing is_end must stay consistent with its choices.
	if _, exists := g.scenes[s.ID]; exists {
		for _, c := range g.ChoicesFor(s.ID) {
			if s.IsEnd && c.NextScene != "" {
				return violation(RuleExtraneousNextScene, s.ID, "is_end",
					"An end scene cannot have choices that lead to another scene (choice '%s').", c.Text)
			}
			if !s.IsEnd && c.NextScene == "" {
				return violation(RuleMissingNextScene, s.ID, "is_end",
					"A scene that is not an end scene needs every choice to lead somewhere (choice '%s').", c.Text)
			}
		}
	}
	return nil
}

func (g *Graph) checkSceneRef(s Scene, field, ref string) error {
	if ref == "" {
		return nil
	}
	if ref == s.ID {
		return violation(RuleInvalidField, s.ID, field, "a scene cannot reference itself as %s", field)
	}
	if _, ok := g.scenes[ref]; ok {
		return nil
	}
	if g.locator != nil {
		if adv, ok := g.locator.LocateScene(ref); ok && adv != g.meta.ID {
			return violation(RuleCrossAdventure, s.ID, field,
				"%s %s belongs to adventure %s", field, ref, adv)
		}
	}
	return violation(RuleUnknownScene, s.ID, field, "%s %s does not exist", field, ref)
}

// ValidateChoice checks c as an insert or update against the current graph.
// It never mutates the graph.
func (g *Graph) ValidateChoice(c Choice) error {
	if err := checkFields(c.ID, c); err != nil {
		return err
	}
	from, ok := g.scenes[c.SceneID]
	if !ok {
		if g.locator != nil {
			if adv, found := g.locator.LocateScene(c.SceneID); found && adv != g.meta.ID {
				return violation(RuleCrossAdventure, c.ID, "scene",
					"scene %s belongs to adventure %s", c.SceneID, adv)
			}
		}
		return violation(RuleUnknownScene, c.ID, "scene", "scene %s does not exist", c.SceneID)
	}

	for _, other := range g.ChoicesFor(c.SceneID) {
		if other.ID != c.ID && other.Order == c.Order {
			return violation(RuleChoiceOrderConflict, c.ID, "order",
				"A choice with that order already exists for this scene: '%s'.", other.Text)
		}
	}

	if from.IsEnd {
		if c.NextScene != "" {
			return violation(RuleExtraneousNextScene, c.ID, "next_scene",
				"An end scene cannot lead to another scene.")
		}
		return nil
	}
	if c.NextScene == "" {
		return violation(RuleMissingNextScene, c.ID, "next_scene",
			"A scene that is not an end scene must have a next scene.")
	}

	target, ok := g.scenes[c.NextScene]
	if !ok {
		if g.locator != nil {
			if adv, found := g.locator.LocateScene(c.NextScene); found && adv != g.meta.ID {
				return violation(RuleCrossAdventure, c.ID, "next_scene",
					"The next scene must belong to the same adventure (found in %s).", adv)
			}
		}
		return violation(RuleUnknownScene, c.ID, "next_scene", "next scene %s does not exist", c.NextScene)
	}
	if target.AdventureID != from.AdventureID {
		return violation(RuleCrossAdventure, c.ID, "next_scene",
			"The next scene must belong to the same adventure (found in %s).", target.AdventureID)
	}
	return nil
}

// CheckComplete verifies whole-graph properties that single mutations cannot:
// exactly one start scene and at least one end scene.
func (g *Graph) CheckComplete() error {
	ve := &ValidationError{}

	var starts, ends int
	for _, s := range g.scenes {
		if s.IsStart {
			starts++
		}
		if s.IsEnd {
			ends++
		}
	}
	switch {
	case starts == 0:
		ve.add(violation(RuleMissingStart, g.meta.ID, "is_start", "adventure %s has no starting scene", g.meta.ID))
	case starts > 1:
		ve.add(violation(RuleDuplicateStart, g.meta.ID, "is_start", "adventure %s has %d starting scenes", g.meta.ID, starts))
	}
	if ends == 0 {
		ve.add(violation(RuleMissingEnd, g.meta.ID, "is_end", "adventure %s has no end scene", g.meta.ID))
	}

	for _, s := range g.sortedScenes() {
		if s.IsEnd || len(g.ChoicesFor(s.ID)) > 0 {
			continue
		}
		ve.add(violation(RuleMissingNextScene, s.ID, "choices", "scene '%s' is not an end scene and has no choices", s.Title))
	}
	return ve.orNil()
}

func (g *Graph) sortedScenes() []*Scene {
	out := make([]*Scene, 0, len(g.scenes))
	for _, s := range g.scenes {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Scene) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})
	return out
}
