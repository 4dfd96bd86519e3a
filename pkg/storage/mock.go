package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
)

// MockStorage is an in-memory implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	adventures map[string]*adventure.Graph
	characters map[uuid.UUID]*actor.Character
	progress   map[uuid.UUID]*state.Progress
	activities map[uuid.UUID][]tracking.Activity
	pingError  error
	commitErr  error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		adventures: make(map[string]*adventure.Graph),
		characters: make(map[uuid.UUID]*actor.Character),
		progress:   make(map[uuid.UUID]*state.Progress),
		activities: make(map[uuid.UUID][]tracking.Activity),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetCommitError makes every Commit fail with err until cleared with nil.
func (m *MockStorage) SetCommitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitErr = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) GetAdventure(ctx context.Context, adventureID string) (*adventure.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.adventures[adventureID]
	if !ok {
		return nil, gameerr.NotFound(fmt.Sprintf("adventure %s not found", adventureID))
	}
	return g.Clone(), nil
}

func (m *MockStorage) SaveAdventure(ctx context.Context, g *adventure.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adventures[g.ID()] = g.Clone()
	return nil
}

func (m *MockStorage) ListAdventures(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.adventures)), nil
}

func (m *MockStorage) GetCharacter(ctx context.Context, id uuid.UUID) (*actor.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.characters[id]
	if !ok {
		return nil, gameerr.NotFound(fmt.Sprintf("character %s not found", id))
	}
	return c.Clone()
}

// SaveCharacter stores c unconditionally and bumps its version.
func (m *MockStorage) SaveCharacter(ctx context.Context, c *actor.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.characters[c.Spec.ID]; ok {
		c.Spec.Version = cur.Spec.Version
	}
	return m.putCharacter(c)
}

func (m *MockStorage) putCharacter(c *actor.Character) error {
	c.Spec.Version++
	stored, err := c.Clone()
	if err != nil {
		c.Spec.Version--
		return fmt.Errorf("failed to copy character: %w", err)
	}
	m.characters[c.Spec.ID] = stored
	return nil
}

func (m *MockStorage) GetProgress(ctx context.Context, id uuid.UUID) (*state.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[id]
	if !ok {
		return nil, gameerr.NotFound(fmt.Sprintf("progress %s not found", id))
	}
	return p.Clone(), nil
}

func (m *MockStorage) ListProgress(ctx context.Context, characterID uuid.UUID, adventureID string) ([]*state.Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*state.Progress
	for _, p := range m.progress {
		if p.CharacterID != characterID {
			continue
		}
		if adventureID != "" && p.AdventureID != adventureID {
			continue
		}
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *state.Progress) int { return a.StartedAt.Compare(b.StartedAt) })
	return out, nil
}

func (m *MockStorage) ListActivities(ctx context.Context, characterID uuid.UUID) ([]tracking.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.activities[characterID]), nil
}

func (m *MockStorage) Commit(ctx context.Context, c Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commitErr != nil {
		return m.commitErr
	}

	if c.Character != nil {
		var current int64
		if cur, ok := m.characters[c.Character.Spec.ID]; ok {
			current = cur.Spec.Version
		}
		if current != c.Character.Spec.Version {
			return gameerr.Conflict(fmt.Sprintf("character %s changed since it was loaded", c.Character.Spec.ID))
		}
	}
	if p := c.Progress; p != nil {
		var current int64
		if cur, ok := m.progress[p.ID]; ok {
			current = cur.Version
		}
		if current != p.Version {
			return gameerr.Conflict(fmt.Sprintf("progress %s changed since it was loaded", p.ID))
		}
		if p.IsActive() {
			for _, other := range m.progress {
				if other.ID != p.ID && other.CharacterID == p.CharacterID &&
					other.AdventureID == p.AdventureID && other.IsActive() {
					return gameerr.DuplicateActiveProgress(fmt.Sprintf(
						"character already has an active run of %s (%s)", p.AdventureID, other.ID))
				}
			}
		}
	}

	if c.Character != nil {
		if err := m.putCharacter(c.Character); err != nil {
			return err
		}
	}
	if c.Progress != nil {
		c.Progress.Version++
		m.progress[c.Progress.ID] = c.Progress.Clone()
	}
	if c.Activity != nil {
		m.activities[c.Activity.CharacterID] = append(m.activities[c.Activity.CharacterID], *c.Activity)
	}
	return nil
}

// ActiveCount reports how many active runs are stored. Test helper.
func (m *MockStorage) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.progress {
		if p.IsActive() {
			n++
		}
	}
	return n
}
