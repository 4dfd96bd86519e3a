package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
	"github.com/redis/go-redis/v9"
)

const adventureSetKey = "adventures"

func adventureKey(id string) string        { return "adventure:" + id }
func characterKey(id uuid.UUID) string     { return "character:" + id.String() }
func progressKey(id uuid.UUID) string      { return "progress:" + id.String() }
func progressIndexKey(id uuid.UUID) string { return "progress:index:" + id.String() }
func activityKey(id uuid.UUID) string      { return "activity:" + id.String() }

func activeProgressKey(characterID uuid.UUID, adventureID string) string {
	return "progress:active:" + characterID.String() + ":" + adventureID
}

// RedisStorage implements the Storage interface using Redis for characters
// and progress, and Redis plus YAML files under dataDir for adventures.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  redis.NewClient(opts),
		logger:  logger,
		dataDir: dataDir,
	}, nil
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Adventure operations (Redis first, then YAML files)

func (r *RedisStorage) GetAdventure(ctx context.Context, adventureID string) (*adventure.Graph, error) {
	data, err := r.client.Get(ctx, adventureKey(adventureID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return r.loadAdventureFile(adventureID)
	case err != nil:
		r.logger.Error("Failed to load adventure", "adventure_id", adventureID, "error", err)
		return nil, fmt.Errorf("failed to load adventure: %w", err)
	}

	var g adventure.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		r.logger.Error("Stored adventure failed validation", "adventure_id", adventureID, "error", err)
		return nil, gameerr.Wrap(gameerr.CodeInvariantBreach, "stored adventure "+adventureID+" is invalid", err)
	}
	return &g, nil
}

func (r *RedisStorage) loadAdventureFile(adventureID string) (*adventure.Graph, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(r.dataDir, "adventures", adventureID+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		g, err := adventure.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if g.ID() != adventureID {
			return nil, gameerr.InvalidInput(fmt.Sprintf("adventure file %s declares id %s", filepath.Base(path), g.ID()))
		}
		return g, nil
	}
	return nil, gameerr.NotFound(fmt.Sprintf("adventure %s not found", adventureID))
}

func (r *RedisStorage) SaveAdventure(ctx context.Context, g *adventure.Graph) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal adventure: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, adventureKey(g.ID()), data, 0)
		pipe.SAdd(ctx, adventureSetKey, g.ID())
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save adventure", "adventure_id", g.ID(), "error", err)
		return fmt.Errorf("failed to save adventure: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListAdventures(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, adventureSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list adventures: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(r.dataDir, "adventures"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read adventures directory: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ext))
		}
	}

	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// Character operations

func (r *RedisStorage) GetCharacter(ctx context.Context, id uuid.UUID) (*actor.Character, error) {
	data, err := r.client.Get(ctx, characterKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gameerr.NotFound(fmt.Sprintf("character %s not found", id))
	}
	if err != nil {
		r.logger.Error("Failed to load character", "character_id", id, "error", err)
		return nil, fmt.Errorf("failed to load character: %w", err)
	}

	var c actor.Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal character: %w", err)
	}
	return &c, nil
}

// SaveCharacter stores c regardless of its version and bumps the version.
func (r *RedisStorage) SaveCharacter(ctx context.Context, c *actor.Character) error {
	cur, err := storedVersion(ctx, r.client, characterKey(c.Spec.ID))
	if err != nil {
		return err
	}
	c.Spec.Version = cur
	return r.Commit(ctx, storage.Commit{Character: c})
}

// Progress operations

func (r *RedisStorage) GetProgress(ctx context.Context, id uuid.UUID) (*state.Progress, error) {
	data, err := r.client.Get(ctx, progressKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gameerr.NotFound(fmt.Sprintf("progress %s not found", id))
	}
	if err != nil {
		r.logger.Error("Failed to load progress", "progress_id", id, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p state.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *RedisStorage) ListProgress(ctx context.Context, characterID uuid.UUID, adventureID string) ([]*state.Progress, error) {
	ids, err := r.client.SMembers(ctx, progressIndexKey(characterID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "progress:" + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var out []*state.Progress
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("Progress index references missing record", "key", keys[i])
			continue
		}
		var p state.Progress
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
		}
		if adventureID != "" && p.AdventureID != adventureID {
			continue
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *state.Progress) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), strings.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (r *RedisStorage) ListActivities(ctx context.Context, characterID uuid.UUID) ([]tracking.Activity, error) {
	vals, err := r.client.LRange(ctx, activityKey(characterID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	out := make([]tracking.Activity, 0, len(vals))
	for _, v := range vals {
		var a tracking.Activity
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Commit writes a transition under WATCH so a concurrent writer aborts it.
func (r *RedisStorage) Commit(ctx context.Context, c storage.Commit) error {
	var keys []string
	var charData, progData, actData []byte
	var err error

	if c.Character != nil {
		spec := *c.Character.Spec
		spec.HP = c.Character.HP()
		spec.Version++
		if charData, err = json.Marshal(spec); err != nil {
			return fmt.Errorf("failed to marshal character: %w", err)
		}
		keys = append(keys, characterKey(spec.ID))
	}
	var activeKey string
	if p := c.Progress; p != nil {
		next := *p
		next.Version++
		if progData, err = json.Marshal(next); err != nil {
			return fmt.Errorf("failed to marshal progress: %w", err)
		}
		activeKey = activeProgressKey(p.CharacterID, p.AdventureID)
		keys = append(keys, progressKey(p.ID), activeKey)
	}
	if c.Activity != nil {
		if actData, err = json.Marshal(c.Activity); err != nil {
			return fmt.Errorf("failed to marshal activity: %w", err)
		}
	}

	txf := func(tx *redis.Tx) error {
		if c.Character != nil {
			if err := checkVersion(ctx, tx, characterKey(c.Character.Spec.ID), c.Character.Spec.Version, "character"); err != nil {
				return err
			}
		}

		var holder string
		if p := c.Progress; p != nil {
			if err := checkVersion(ctx, tx, progressKey(p.ID), p.Version, "progress"); err != nil {
				return err
			}
			holder, err = tx.Get(ctx, activeKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read active progress: %w", err)
			}
			if p.IsActive() && holder != "" && holder != p.ID.String() {
				return gameerr.DuplicateActiveProgress(fmt.Sprintf(
					"character already has an active run of %s (%s)", p.AdventureID, holder))
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if c.Character != nil {
				pipe.Set(ctx, characterKey(c.Character.Spec.ID), charData, 0)
			}
			if p := c.Progress; p != nil {
				pipe.Set(ctx, progressKey(p.ID), progData, 0)
				pipe.SAdd(ctx, progressIndexKey(p.CharacterID), p.ID.String())
				switch {
				case p.IsActive():
					pipe.Set(ctx, activeKey, p.ID.String(), 0)
				case holder == p.ID.String():
					pipe.Del(ctx, activeKey)
				}
			}
			if c.Activity != nil {
				pipe.RPush(ctx, activityKey(c.Activity.CharacterID), actData)
			}
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txf, keys...); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return gameerr.Conflict("records changed during commit")
		}
		var ge *gameerr.Error
		if !errors.As(err, &ge) {
			r.logger.Error("Failed to commit transition", "error", err)
		}
		return err
	}

	if c.Character != nil {
		c.Character.Spec.Version++
	}
	if c.Progress != nil {
		c.Progress.Version++
	}
	return nil
}

type versioned struct {
	Version int64 `json:"version"`
}

func storedVersion(ctx context.Context, cmd redis.Cmdable, key string) (int64, error) {
	data, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var v versioned
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("failed to read version of %s: %w", key, err)
	}
	return v.Version, nil
}

func checkVersion(ctx context.Context, tx *redis.Tx, key string, expected int64, what string) error {
	cur, err := storedVersion(ctx, tx, key)
	if err != nil {
		return err
	}
	if cur != expected {
		return gameerr.Conflict(fmt.Sprintf("%s changed since it was loaded (version %d, expected %d)", what, cur, expected))
	}
	return nil
}
