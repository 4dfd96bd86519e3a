package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/state"
)

func newCharacter(t *testing.T) *actor.Character {
	t.Helper()
	c, err := actor.NewCharacterFromSpec(&actor.CharacterSpec{ID: uuid.New(), Name: "Tess", Class: "mage", Level: 1, HP: 8})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMockStorage_Ping(t *testing.T) {
	m := NewMockStorage()
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}
	m.SetPingError(errors.New("down"))
	if err := m.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	m.SetPingSuccess()
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() = %v", err)
	}
}

func TestMockStorage_NotFound(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()

	if _, err := m.GetCharacter(ctx, uuid.New()); !errors.Is(err, gameerr.ErrNotFound) {
		t.Errorf("GetCharacter error = %v", err)
	}
	if _, err := m.GetProgress(ctx, uuid.New()); !errors.Is(err, gameerr.ErrNotFound) {
		t.Errorf("GetProgress error = %v", err)
	}
	if _, err := m.GetAdventure(ctx, "nope"); !errors.Is(err, gameerr.ErrNotFound) {
		t.Errorf("GetAdventure error = %v", err)
	}
}

func TestMockStorage_AdventureIsCopied(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	g, err := adventure.NewGraph(adventure.Adventure{ID: "a", Title: "A", MinLevel: 1, Difficulty: adventure.DifficultyEasy})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SaveAdventure(ctx, g); err != nil {
		t.Fatal(err)
	}
	if _, err := g.PutScene(adventure.Scene{ID: "s", AdventureID: "a", Title: "S", IsStart: true}); err != nil {
		t.Fatal(err)
	}
	stored, err := m.GetAdventure(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Scenes()) != 0 {
		t.Error("mutating the saved graph leaked into storage")
	}
	ids, _ := m.ListAdventures(ctx)
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("ListAdventures = %v", ids)
	}
}

func TestMockStorage_CommitVersions(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	c := newCharacter(t)
	if err := m.SaveCharacter(ctx, c); err != nil {
		t.Fatal(err)
	}

	a, _ := m.GetCharacter(ctx, c.Spec.ID)
	b, _ := m.GetCharacter(ctx, c.Spec.ID)

	a.Spec.Currency = 5
	if err := m.Commit(ctx, Commit{Character: a}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	b.Spec.Currency = 9
	if err := m.Commit(ctx, Commit{Character: b}); !errors.Is(err, gameerr.ErrConflict) {
		t.Fatalf("stale commit error = %v, want CONFLICT", err)
	}

	got, _ := m.GetCharacter(ctx, c.Spec.ID)
	if got.Spec.Currency != 5 || got.Spec.Version != 2 {
		t.Errorf("stored currency=%d version=%d", got.Spec.Currency, got.Spec.Version)
	}
}

func TestMockStorage_SingleActiveRun(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	charID := uuid.New()
	now := time.Now()

	first := &state.Progress{ID: uuid.New(), CharacterID: charID, AdventureID: "a", StartedAt: now}
	if err := m.Commit(ctx, Commit{Progress: first}); err != nil {
		t.Fatal(err)
	}

	second := &state.Progress{ID: uuid.New(), CharacterID: charID, AdventureID: "a", StartedAt: now.Add(time.Second)}
	if err := m.Commit(ctx, Commit{Progress: second}); !errors.Is(err, gameerr.ErrDuplicateActiveProgress) {
		t.Fatalf("error = %v, want DUPLICATE_ACTIVE_PROGRESS", err)
	}

	first.Completed = true
	if err := m.Commit(ctx, Commit{Progress: first}); err != nil {
		t.Fatal(err)
	}
	second.Version = 0
	if err := m.Commit(ctx, Commit{Progress: second}); err != nil {
		t.Fatalf("start after completion: %v", err)
	}

	runs, _ := m.ListProgress(ctx, charID, "a")
	if len(runs) != 2 || runs[0].ID != first.ID {
		t.Errorf("ListProgress = %v", runs)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d", m.ActiveCount())
	}
}
