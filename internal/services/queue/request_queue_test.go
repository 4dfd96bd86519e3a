package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	// Create queue client
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func TestRequestQueue_FIFO(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewRequestQueue(client)
	ctx := context.Background()
	charID := uuid.New()

	for _, adv := range []string{"goblin_caves", "sunken_temple"} {
		req := &queue.Request{Type: queue.RequestTypeStart, CharacterID: charID, AdventureID: adv}
		if err := q.EnqueueRequest(ctx, req); err != nil {
			t.Fatalf("Failed to enqueue request: %v", err)
		}
		if req.RequestID == "" || req.EnqueuedAt.IsZero() {
			t.Errorf("EnqueueRequest should fill request ID and time: %+v", req)
		}
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("Expected depth 2, got %d", depth)
	}

	first, err := q.DequeueRequest(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if first.AdventureID != "goblin_caves" {
		t.Errorf("Expected goblin_caves first, got %s", first.AdventureID)
	}

	second, err := q.BlockingDequeueRequest(ctx, time.Second)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if second.AdventureID != "sunken_temple" {
		t.Errorf("Expected sunken_temple second, got %s", second.AdventureID)
	}

	empty, err := q.DequeueRequest(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue from empty queue: %v", err)
	}
	if empty != nil {
		t.Errorf("Expected nil from empty queue, got %+v", empty)
	}
}

func TestRequestQueue_RejectsInvalid(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewRequestQueue(client)
	err := q.EnqueueRequest(context.Background(), &queue.Request{Type: queue.RequestTypeChoose, CharacterID: uuid.New()})
	if err == nil {
		t.Fatal("Expected validation error for choose without progress")
	}
	if depth, _ := q.Depth(context.Background()); depth != 0 {
		t.Errorf("Invalid request should not be queued, depth %d", depth)
	}
}

func TestRequestQueue_Requeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	q := NewRequestQueue(client)
	ctx := context.Background()
	req := &queue.Request{RequestID: "r1", Type: queue.RequestTypeGainXP, CharacterID: uuid.New(), Amount: 5}

	if err := q.Requeue(ctx, req); err != nil {
		t.Fatalf("Failed to requeue: %v", err)
	}
	got, err := q.DequeueRequest(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue: %v", err)
	}
	if got.RequestID != "r1" || got.Amount != 5 {
		t.Errorf("Unexpected request after requeue: %+v", got)
	}
}
