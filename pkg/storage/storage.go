package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
)

// Commit is the persisted result of one transition. Nil fields are left
// unchanged. Character and Progress carry the version they were loaded at;
// the commit fails with a CONFLICT error if either was written since.
type Commit struct {
	Character *actor.Character
	Progress  *state.Progress
	Activity  *tracking.Activity
}

// Storage defines a unified interface for all storage operations.
// Missing records are reported with a gameerr NOT_FOUND error.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Adventure graphs
	GetAdventure(ctx context.Context, adventureID string) (*adventure.Graph, error)
	SaveAdventure(ctx context.Context, g *adventure.Graph) error
	ListAdventures(ctx context.Context) ([]string, error)

	// Characters
	GetCharacter(ctx context.Context, id uuid.UUID) (*actor.Character, error)
	SaveCharacter(ctx context.Context, c *actor.Character) error

	// Progress and activity
	GetProgress(ctx context.Context, id uuid.UUID) (*state.Progress, error)
	// ListProgress returns a character's runs, optionally filtered by adventure.
	ListProgress(ctx context.Context, characterID uuid.UUID, adventureID string) ([]*state.Progress, error)
	ListActivities(ctx context.Context, characterID uuid.UUID) ([]tracking.Activity, error)

	// Commit atomically persists a transition. A second active run for the
	// same character and adventure is rejected with DUPLICATE_ACTIVE_PROGRESS.
	// On success the versions of the committed records are incremented in place.
	Commit(ctx context.Context, c Commit) error
}
