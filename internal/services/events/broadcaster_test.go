package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/combat"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil))), rdb
}

func subscribe(t *testing.T, rdb *redis.Client, characterID uuid.UUID) <-chan *redis.Message {
	t.Helper()
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, Channel(characterID))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	return sub.Channel()
}

func next(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_RequestLifecycle(t *testing.T) {
	b, rdb := setup(t)
	ctx := context.Background()
	charID := uuid.New()
	ch := subscribe(t, rdb, charID)

	require.NoError(t, b.PublishRequestProcessing(ctx, charID, "r1", "choose"))
	require.NoError(t, b.PublishRequestFailed(ctx, charID, "r1", "INELIGIBLE_CHOICE", "Require class: Rogue"))

	ev := next(t, ch)
	assert.Equal(t, EventTypeRequestProcessing, ev.Type)
	assert.Equal(t, charID.String(), ev.CharacterID)
	assert.Equal(t, "choose", ev.Data["type"])

	ev = next(t, ch)
	assert.Equal(t, EventTypeRequestFailed, ev.Type)
	assert.Equal(t, "INELIGIBLE_CHOICE", ev.Data["code"])
	assert.Equal(t, "Require class: Rogue", ev.Data["error"])
}

func TestBroadcaster_PublishTransition(t *testing.T) {
	b, rdb := setup(t)
	ctx := context.Background()

	c, err := actor.NewCharacterFromSpec(&actor.CharacterSpec{ID: uuid.New(), Name: "Ysolde", Class: "warrior", Level: 2, HP: 20})
	require.NoError(t, err)
	ch := subscribe(t, rdb, c.Spec.ID)

	tr := &state.Transition{
		Progress:  &state.Progress{ID: uuid.New(), CharacterID: c.Spec.ID, AdventureID: "goblin_caves", CurrentScene: "chief_hall"},
		Character: c,
		Combat:    &combat.Outcome{Winner: combat.WinnerCharacter, Turns: 4, XPGained: 30},
		Events: []state.Event{
			{Kind: state.EventCombatPending, SceneID: "chief_hall"},
			{Kind: state.EventCombatWon, SceneID: "chief_hall"},
			{Kind: state.EventLeveled, Level: 3},
		},
	}
	require.NoError(t, b.PublishTransition(ctx, "r2", tr))

	ev := next(t, ch)
	assert.Equal(t, EventTypeCombatResolved, ev.Type)
	assert.Equal(t, "character", ev.Data["winner"])
	assert.Equal(t, float64(4), ev.Data["turns"])
	assert.Equal(t, tr.Progress.ID.String(), ev.ProgressID)

	ev = next(t, ch)
	assert.Equal(t, EventTypeCharacterLeveled, ev.Type)
	assert.Equal(t, float64(3), ev.Data["level"])
}

func TestBroadcaster_PublishTransitionNil(t *testing.T) {
	b, _ := setup(t)
	assert.NoError(t, b.PublishTransition(context.Background(), "r3", nil))
}
