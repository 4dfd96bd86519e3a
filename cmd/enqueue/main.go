package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/internal/config"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	queueservice "github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/pkg/queue"
	"github.com/jwebster45206/quest-engine/pkg/reward"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
)

func main() {
	var (
		requestType  = flag.String("type", string(queue.RequestTypeStart), "request type: start, choose, resolve_combat, abandon, apply_rewards, gain_xp, log_activity")
		characterID  = flag.String("character", "", "character UUID (required)")
		adventureID  = flag.String("adventure", "", "adventure ID for start")
		progressID   = flag.String("progress", "", "progress UUID for choose, resolve_combat and abandon")
		choiceID     = flag.String("choice", "", "choice ID for choose")
		seed         = flag.Int64("seed", 0, "combat seed for resolve_combat (0 picks one)")
		amount       = flag.Int("amount", 0, "xp amount for gain_xp")
		scaled       = flag.Bool("scaled", false, "apply the level multiplier for gain_xp")
		rewardsJSON  = flag.String("rewards", "", `rewards for apply_rewards as JSON, e.g. '[{"type":"currency","value":10}]'`)
		activityType = flag.String("activity", "", "activity type for log_activity")
		minutes      = flag.Int("minutes", 0, "activity duration for log_activity")
		satisfaction = flag.Int("satisfaction", 5, "activity satisfaction 1-10 for log_activity")
		redisURL     = flag.String("redis", "", "Redis URL (defaults to REDIS_URL)")
		watch        = flag.Duration("watch", 0, "print character events for this long after enqueueing")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if *redisURL == "" {
		*redisURL = cfg.RedisURL
	}

	charID, err := uuid.Parse(*characterID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: %s -character <uuid> [-type start -adventure <id>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	req := &queue.Request{
		RequestID:   uuid.New().String(),
		Type:        queue.RequestType(*requestType),
		CharacterID: charID,
		AdventureID: *adventureID,
		ChoiceID:    *choiceID,
		Amount:      *amount,
		Scaled:      *scaled,
	}
	if *progressID != "" {
		if req.ProgressID, err = uuid.Parse(*progressID); err != nil {
			log.Fatal("Invalid progress ID:", err)
		}
	}
	if *seed != 0 {
		req.Seed = seed
	}
	if *rewardsJSON != "" {
		var rewards []reward.Reward
		if err := json.Unmarshal([]byte(*rewardsJSON), &rewards); err != nil {
			log.Fatal("Invalid rewards:", err)
		}
		req.Rewards = rewards
	}
	if req.Type == queue.RequestTypeLogActivity {
		req.Activity = &tracking.Activity{
			CharacterID:     charID,
			Type:            *activityType,
			DurationMinutes: *minutes,
			Satisfaction:    *satisfaction,
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := queueservice.NewClient(*redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	fmt.Println("Connected to Redis successfully!")

	ctx := context.Background()

	// Subscribe before enqueueing so a fast worker cannot outrun us
	pubsub := client.GetRedisClient().Subscribe(ctx, events.Channel(charID))
	defer pubsub.Close()
	if *watch > 0 {
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Fatal("Failed to subscribe to events:", err)
		}
	}

	requests := queueservice.NewRequestQueue(client)
	if err := requests.EnqueueRequest(ctx, req); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}
	fmt.Printf("✅ Enqueued %s request: %s\n", req.Type, req.RequestID)

	depth, err := requests.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to check queue length:", err)
	}
	fmt.Printf("📊 Queue depth: %d\n", depth)

	if *watch <= 0 {
		return
	}

	fmt.Printf("👀 Watching %s for %s...\n", events.Channel(charID), *watch)
	timeout := time.After(*watch)
	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			var ev events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				fmt.Printf("  ? %s\n", msg.Payload)
				continue
			}
			if ev.RequestID != req.RequestID {
				continue
			}
			data, _ := json.Marshal(ev.Data)
			fmt.Printf("  %s %s\n", ev.Type, data)
			if ev.Type == events.EventTypeRequestCompleted || ev.Type == events.EventTypeRequestFailed {
				return
			}
		case <-timeout:
			fmt.Println("⏱️  No completion event before timeout")
			return
		}
	}
}
