package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
)

// Change is one candidate graph mutation. Exactly one field must be set.
type Change struct {
	Scene  *adventure.Scene  `json:"scene,omitempty"`
	Choice *adventure.Choice `json:"choice,omitempty"`
	Enemy  *adventure.Enemy  `json:"enemy,omitempty"`
}

func (c Change) check() error {
	n := 0
	for _, set := range []bool{c.Scene != nil, c.Choice != nil, c.Enemy != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return gameerr.InvalidInput("a change must carry exactly one of scene, choice or enemy")
	}
	return nil
}

// CreateAdventure stores a new, empty adventure.
func (s *ProgressionService) CreateAdventure(ctx context.Context, meta adventure.Adventure) (*adventure.Graph, error) {
	const op = "create_adventure"

	g, err := adventure.NewGraph(meta)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if _, err := s.store.GetAdventure(ctx, meta.ID); err == nil {
		return nil, s.fail(ctx, op, gameerr.InvalidInput(fmt.Sprintf("adventure %s already exists", meta.ID)))
	} else if !errors.Is(err, gameerr.ErrNotFound) {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.store.SaveAdventure(ctx, g); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	s.metrics.Transition(op)
	return g, nil
}

// ValidateSceneGraph checks change against the adventure's current graph
// without applying it.
func (s *ProgressionService) ValidateSceneGraph(ctx context.Context, adventureID string, change Change) error {
	const op = "validate_scene_graph"

	if err := change.check(); err != nil {
		return s.fail(ctx, op, err)
	}
	g, err := s.authoringGraph(ctx, adventureID)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	switch {
	case change.Scene != nil:
		sc := *change.Scene
		if sc.AdventureID == "" {
			sc.AdventureID = adventureID
		}
		err = g.ValidateScene(sc)
	case change.Choice != nil:
		err = g.ValidateChoice(*change.Choice)
	case change.Enemy != nil:
		err = g.ValidateEnemy(*change.Enemy)
	}
	if err != nil {
		return s.fail(ctx, op, err)
	}
	return nil
}

// ApplyChange validates change, applies it with any previous-scene repair
// and saves the adventure. It returns the IDs of the entities written.
func (s *ProgressionService) ApplyChange(ctx context.Context, adventureID string, change Change) ([]string, error) {
	const op = "apply_change"

	if err := change.check(); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	g, err := s.authoringGraph(ctx, adventureID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	var touched []string
	switch {
	case change.Scene != nil:
		sc := *change.Scene
		if sc.AdventureID == "" {
			sc.AdventureID = adventureID
		}
		touched, err = g.PutScene(sc)
	case change.Choice != nil:
		err = g.PutChoice(*change.Choice)
		touched = []string{change.Choice.ID}
	case change.Enemy != nil:
		err = g.PutEnemy(*change.Enemy)
		touched = []string{change.Enemy.ID}
	}
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	if err := s.store.SaveAdventure(ctx, g); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	s.metrics.Transition(op)
	s.requestLogger(ctx).Info("Adventure graph updated",
		"adventure_id", adventureID,
		"touched", touched)
	return touched, nil
}

// CheckAdventure verifies the adventure is playable as a whole.
func (s *ProgressionService) CheckAdventure(ctx context.Context, adventureID string) error {
	g, err := s.store.GetAdventure(ctx, adventureID)
	if err != nil {
		return s.fail(ctx, "check_adventure", err)
	}
	if err := g.CheckComplete(); err != nil {
		return s.fail(ctx, "check_adventure", err)
	}
	return nil
}

// authoringGraph loads adventureID with a locator over every other
// adventure so cross-adventure references are reported as such.
func (s *ProgressionService) authoringGraph(ctx context.Context, adventureID string) (*adventure.Graph, error) {
	g, err := s.store.GetAdventure(ctx, adventureID)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.ListAdventures(ctx)
	if err != nil {
		return nil, err
	}

	others := make([]*adventure.Graph, 0, len(ids))
	for _, id := range ids {
		if id == adventureID {
			continue
		}
		other, err := s.store.GetAdventure(ctx, id)
		if err != nil {
			s.logger.Warn("Skipping adventure in scene index", "adventure_id", id, "error", err)
			continue
		}
		others = append(others, other)
	}
	g.SetLocator(adventure.NewIndex(others...))
	return g, nil
}
