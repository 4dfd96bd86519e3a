package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	"github.com/jwebster45206/quest-engine/internal/services"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/internal/services/queue"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	queuePkg "github.com/jwebster45206/quest-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL        = 30 * time.Second
	defaultDequeueTimeout = 5 * time.Second
)

// Only delete the lock if we still own it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Options tunes a Worker. Zero values take the defaults.
type Options struct {
	WorkerID       string
	LockTTL        time.Duration
	DequeueTimeout time.Duration
	Metrics        *metrics.Metrics
}

// Worker processes progression requests from the queue, one character at a
// time across all workers.
type Worker struct {
	id             string
	queue          *queue.RequestQueue
	service        *services.ProgressionService
	broadcaster    *events.Broadcaster
	redisClient    *redis.Client
	metrics        *metrics.Metrics
	lockTTL        time.Duration
	dequeueTimeout time.Duration
	log            *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
}

// New creates a new worker instance
func New(requests *queue.RequestQueue, service *services.ProgressionService, broadcaster *events.Broadcaster, redisClient *redis.Client, log *slog.Logger, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	workerID := opts.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	dequeueTimeout := opts.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = defaultDequeueTimeout
	}

	return &Worker{
		id:             workerID,
		queue:          requests,
		service:        service,
		broadcaster:    broadcaster,
		redisClient:    redisClient,
		metrics:        opts.Metrics,
		lockTTL:        lockTTL,
		dequeueTimeout: dequeueTimeout,
		log:            log.With("worker_id", workerID),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				if w.ctx.Err() != nil {
					continue
				}
				logger.WithError(w.log, err).Error("Error processing request")
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeueRequest(w.ctx, w.dequeueTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	log := logger.WithCharacter(logger.WithRequestID(w.log, req.RequestID), req.CharacterID.String()).With("type", req.Type)
	log.Info("Received request from queue")

	token := w.id + ":" + uuid.New().String()
	locked, err := w.acquireLock(req.LockKey(), token)
	if err != nil {
		if qerr := w.queue.Requeue(w.ctx, req); qerr != nil {
			log.Error("Failed to re-queue request after lock error", "error", qerr)
		}
		return fmt.Errorf("failed to acquire character lock: %w", err)
	}
	if !locked {
		// Another worker holds this character; retry later
		log.Info("Character already locked, re-queueing request")
		w.metrics.LockContended()
		if err := w.queue.Requeue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}
	defer w.releaseLock(req.LockKey(), token)

	return w.processRequest(req, log)
}

// acquireLock attempts to take key for token.
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireLock(key, token string) (bool, error) {
	return w.redisClient.SetNX(w.ctx, key, token, w.lockTTL).Result()
}

// releaseLock releases key if token still holds it
func (w *Worker) releaseLock(key, token string) {
	// Release even when shutting down
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, w.redisClient, []string{key}, token).Err(); err != nil {
		logger.WithError(w.log, err).Error("Failed to release character lock", "lock_key", key)
	}
}

// processRequest runs one request and publishes its outcome. Rejections the
// caller caused are reported to the character's channel, not returned.
func (w *Worker) processRequest(req *queuePkg.Request, log *slog.Logger) error {
	start := time.Now()
	ctx := services.WithRequestID(w.ctx, req.RequestID)

	if err := w.broadcaster.PublishRequestProcessing(ctx, req.CharacterID, req.RequestID, string(req.Type)); err != nil {
		logger.WithError(log, err).Error("Failed to publish processing event")
		// Don't fail the request just because event publishing failed
	}

	result, err := w.dispatch(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		w.metrics.Request(string(req.Type), "failed", elapsed)
		code := gameerr.CodeOf(err)
		if pubErr := w.broadcaster.PublishRequestFailed(ctx, req.CharacterID, req.RequestID, string(code), gameerr.PublicMessage(err)); pubErr != nil {
			logger.WithError(log, pubErr).Error("Failed to publish failure event")
		}
		if gameerr.IsUserFacing(err) {
			log.Info("Request rejected", "code", code, "reason", gameerr.PublicMessage(err))
			return nil
		}
		return fmt.Errorf("failed to process %s request %s: %w", req.Type, req.RequestID, err)
	}

	w.metrics.Request(string(req.Type), "completed", elapsed)
	result["duration_ms"] = elapsed.Milliseconds()
	if err := w.broadcaster.PublishRequestCompleted(ctx, req.CharacterID, req.RequestID, result); err != nil {
		logger.WithError(log, err).Error("Failed to publish completion event")
	}
	log.Info("Request processed successfully", "duration_ms", elapsed.Milliseconds())
	return nil
}

func (w *Worker) dispatch(ctx context.Context, req *queuePkg.Request) (map[string]any, error) {
	if err := req.Validate(); err != nil {
		return nil, gameerr.Wrap(gameerr.CodeInvalidInput, err.Error(), err)
	}

	switch req.Type {
	case queuePkg.RequestTypeStart:
		t, err := w.service.StartAdventure(ctx, req.CharacterID, req.AdventureID)
		if err != nil {
			return nil, err
		}
		return progressResult(t.Progress.ID, t.Progress.CurrentScene, string(t.Progress.Status())), nil

	case queuePkg.RequestTypeChoose:
		t, err := w.service.Choose(ctx, req.CharacterID, req.ProgressID, req.ChoiceID)
		if err != nil {
			return nil, err
		}
		res := progressResult(t.Progress.ID, t.Progress.CurrentScene, string(t.Progress.Status()))
		res["pending_combat"] = t.Progress.PendingCombat
		return res, nil

	case queuePkg.RequestTypeResolveCombat:
		t, err := w.service.ResolveCombat(ctx, req.CharacterID, req.ProgressID, req.Seed)
		if err != nil {
			return nil, err
		}
		res := progressResult(t.Progress.ID, t.Progress.CurrentScene, string(t.Progress.Status()))
		res["winner"] = string(t.Combat.Winner)
		res["turns"] = t.Combat.Turns
		res["xp_gained"] = t.Combat.XPGained
		return res, nil

	case queuePkg.RequestTypeAbandon:
		t, err := w.service.Abandon(ctx, req.CharacterID, req.ProgressID)
		if err != nil {
			return nil, err
		}
		return progressResult(t.Progress.ID, t.Progress.CurrentScene, string(t.Progress.Status())), nil

	case queuePkg.RequestTypeApplyRewards:
		c, sum, err := w.service.ApplyRewards(ctx, req.CharacterID, req.Rewards, "request:"+req.RequestID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": c.Spec.Level, "xp": sum.XP, "levels_gained": sum.LevelsGained}, nil

	case queuePkg.RequestTypeGainXP:
		c, res, err := w.service.GainXP(ctx, req.CharacterID, req.Amount, req.Scaled)
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": c.Spec.Level, "credited": res.Credited, "levels_gained": res.LevelsGained}, nil

	case queuePkg.RequestTypeLogActivity:
		res, err := w.service.LogActivity(ctx, req.CharacterID, *req.Activity)
		if err != nil {
			return nil, err
		}
		return map[string]any{"level": res.Character.Spec.Level, "xp_earned": res.Activity.XPEarned, "levels_gained": res.LevelsGained}, nil
	}

	return nil, errors.New("unreachable: request type passed validation")
}

func progressResult(id uuid.UUID, scene, status string) map[string]any {
	return map[string]any{
		"progress_id": id.String(),
		"scene":       scene,
		"status":      status,
	}
}
