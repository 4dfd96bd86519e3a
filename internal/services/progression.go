// Package services runs progression operations against storage: load the
// records, apply the engine transition, commit, then publish and record.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/metrics"
	"github.com/jwebster45206/quest-engine/internal/services/events"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/combat"
	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/leveling"
	"github.com/jwebster45206/quest-engine/pkg/reward"
	"github.com/jwebster45206/quest-engine/pkg/state"
	"github.com/jwebster45206/quest-engine/pkg/storage"
	"github.com/jwebster45206/quest-engine/pkg/tracking"
)

// Publisher receives committed transitions.
type Publisher interface {
	PublishTransition(ctx context.Context, requestID string, t *state.Transition) error
	PublishLeveled(ctx context.Context, characterID uuid.UUID, requestID string, level, gained int) error
}

var _ Publisher = (*events.Broadcaster)(nil)

// Options configures a ProgressionService. Every field is optional.
type Options struct {
	Catalog      *actor.Catalog
	StrictGrants bool
	MaxLevelUps  int
	Publisher    Publisher
	Metrics      *metrics.Metrics
	Now          func() time.Time
	NewSeed      func() (int64, error)
}

// ProgressionService is the entry point for every progression operation.
type ProgressionService struct {
	store     storage.Storage
	logger    *slog.Logger
	machine   *state.Machine
	rewards   *reward.Applicator
	leveling  leveling.Engine
	catalog   *actor.Catalog
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	newSeed   func() (int64, error)
}

// NewProgressionService creates a service over store.
func NewProgressionService(store storage.Storage, log *slog.Logger, opts Options) *ProgressionService {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newSeed := opts.NewSeed
	if newSeed == nil {
		newSeed = combat.NewSeed
	}

	engine := leveling.Engine{MaxLevelUps: opts.MaxLevelUps}
	rewards := &reward.Applicator{
		Leveling:     engine,
		Catalog:      opts.Catalog,
		StrictGrants: opts.StrictGrants,
		Now:          now,
	}

	var namer conditionals.Namer
	if opts.Catalog != nil {
		namer = opts.Catalog
	}

	return &ProgressionService{
		store:  store,
		logger: log,
		machine: &state.Machine{
			Rewards: rewards,
			Namer:   namer,
			Now:     now,
		},
		rewards:   rewards,
		leveling:  engine,
		catalog:   opts.Catalog,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       now,
		newSeed:   newSeed,
	}
}

type requestIDKey struct{}

// WithRequestID tags ctx with the queued request being processed.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Adventure runs

// StartAdventure begins a run of adventureID for the character.
func (s *ProgressionService) StartAdventure(ctx context.Context, characterID uuid.UUID, adventureID string) (*state.Transition, error) {
	const op = "start"

	c, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	g, err := s.store.GetAdventure(ctx, adventureID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if !g.Adventure().Published {
		s.logger.Warn("Starting unpublished adventure", "adventure_id", adventureID, "character_id", characterID)
	}
	prior, err := s.store.ListProgress(ctx, characterID, adventureID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	t, err := s.machine.Start(c, g, prior)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.commit(ctx, op, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Choose follows choiceID from the run's current scene.
func (s *ProgressionService) Choose(ctx context.Context, characterID, progressID uuid.UUID, choiceID string) (*state.Transition, error) {
	const op = "choose"

	p, c, g, err := s.loadRun(ctx, characterID, progressID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	t, err := s.machine.Choose(p, choiceID, c, g)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.commit(ctx, op, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveCombat fights the current scene's enemy. A nil seed draws a fresh
// one; the seed used is logged so the fight can be replayed.
func (s *ProgressionService) ResolveCombat(ctx context.Context, characterID, progressID uuid.UUID, seed *int64) (*state.Transition, error) {
	const op = "resolve_combat"

	p, c, g, err := s.loadRun(ctx, characterID, progressID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	var rngSeed int64
	if seed != nil {
		rngSeed = *seed
	} else if rngSeed, err = s.newSeed(); err != nil {
		return nil, s.fail(ctx, op, fmt.Errorf("failed to draw combat seed: %w", err))
	}
	rng := combat.NewRNG(rngSeed)

	t, err := s.machine.ResolveCombat(p, c, g, rng)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.commit(ctx, op, t); err != nil {
		return nil, err
	}

	s.metrics.Combat(string(t.Combat.Winner), t.Combat.Turns)
	logger.WithCharacter(s.requestLogger(ctx), characterID.String()).Info("Combat resolved",
		"progress_id", progressID,
		"seed", rngSeed,
		"draws", rng.Position(),
		"winner", t.Combat.Winner,
		"turns", t.Combat.Turns)
	return t, nil
}

// Abandon ends an active run without rewards.
func (s *ProgressionService) Abandon(ctx context.Context, characterID, progressID uuid.UUID) (*state.Transition, error) {
	const op = "abandon"

	p, c, g, err := s.loadRun(ctx, characterID, progressID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	t, err := s.machine.Abandon(p, c, g)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if err := s.commit(ctx, op, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListChoices returns the current scene's choices with their availability.
func (s *ProgressionService) ListChoices(ctx context.Context, characterID, progressID uuid.UUID) ([]state.ChoiceView, error) {
	p, c, g, err := s.loadRun(ctx, characterID, progressID)
	if err != nil {
		return nil, s.fail(ctx, "list_choices", err)
	}
	views, err := s.machine.Choices(p, c, g)
	if err != nil {
		return nil, s.fail(ctx, "list_choices", err)
	}
	return views, nil
}

// EvaluateChoice reports whether the character may take choiceID. A nil
// characterID evaluates for nobody, which is never available.
func (s *ProgressionService) EvaluateChoice(ctx context.Context, characterID uuid.UUID, adventureID, choiceID string) (conditionals.Availability, error) {
	g, err := s.store.GetAdventure(ctx, adventureID)
	if err != nil {
		return conditionals.Availability{}, s.fail(ctx, "evaluate_choice", err)
	}
	choice, ok := g.Choice(choiceID)
	if !ok {
		return conditionals.Availability{}, s.fail(ctx, "evaluate_choice",
			gameerr.NotFound(fmt.Sprintf("choice %s not found in adventure %s", choiceID, adventureID)))
	}

	var view conditionals.CapabilityView
	if characterID != uuid.Nil {
		c, err := s.store.GetCharacter(ctx, characterID)
		if err != nil {
			return conditionals.Availability{}, s.fail(ctx, "evaluate_choice", err)
		}
		view = c.Capabilities()
	}
	return conditionals.Evaluate(choice.Requirements, view, s.machine.Namer), nil
}

func (s *ProgressionService) loadRun(ctx context.Context, characterID, progressID uuid.UUID) (*state.Progress, *actor.Character, *adventure.Graph, error) {
	p, err := s.store.GetProgress(ctx, progressID)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.CharacterID != characterID {
		return nil, nil, nil, gameerr.InvalidInput("progress belongs to a different character")
	}
	c, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := s.store.GetAdventure(ctx, p.AdventureID)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, c, g, nil
}

// Character progression outside adventure runs

// ApplyRewards grants rewards to the character atomically.
func (s *ProgressionService) ApplyRewards(ctx context.Context, characterID uuid.UUID, rewards []reward.Reward, source string) (*actor.Character, reward.Summary, error) {
	const op = "apply_rewards"

	c, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, reward.Summary{}, s.fail(ctx, op, err)
	}
	app := *s.rewards
	app.Source = source
	next, sum, err := app.Apply(c, rewards)
	if err != nil {
		return nil, reward.Summary{}, s.fail(ctx, op, err)
	}
	if err := s.commitCharacter(ctx, op, next, nil, sum.LevelsGained); err != nil {
		return nil, reward.Summary{}, err
	}
	s.metrics.XP("reward", sum.XP)
	return next, sum, nil
}

// GainXP credits amount to the character through the leveling engine.
// scaled marks the gain as multiplier-eligible.
func (s *ProgressionService) GainXP(ctx context.Context, characterID uuid.UUID, amount int, scaled bool) (*actor.Character, leveling.Result, error) {
	const op = "gain_xp"

	c, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, leveling.Result{}, s.fail(ctx, op, err)
	}
	res, err := s.leveling.Apply(c.Leveling(), leveling.Gain{Amount: amount, Scaled: scaled})
	if err != nil {
		return nil, leveling.Result{}, s.fail(ctx, op, err)
	}
	next, err := c.Clone()
	if err != nil {
		return nil, leveling.Result{}, s.fail(ctx, op, gameerr.Wrap(gameerr.CodeInvariantBreach, "failed to copy character", err))
	}
	next.SetLeveling(res.Progress)

	if err := s.commitCharacter(ctx, op, next, nil, res.LevelsGained); err != nil {
		return nil, leveling.Result{}, err
	}
	source := "direct"
	if scaled {
		source = "scaled"
	}
	s.metrics.XP(source, res.Credited)
	return next, res, nil
}

// LogActivity records a tracked activity and credits its scaled xp.
func (s *ProgressionService) LogActivity(ctx context.Context, characterID uuid.UUID, a tracking.Activity) (tracking.Result, error) {
	const op = "log_activity"

	c, err := s.store.GetCharacter(ctx, characterID)
	if err != nil {
		return tracking.Result{}, s.fail(ctx, op, err)
	}
	res, err := tracking.Log(c, a, s.leveling, s.now())
	if err != nil {
		return tracking.Result{}, s.fail(ctx, op, err)
	}
	if err := s.commitCharacter(ctx, op, res.Character, &res.Activity, res.LevelsGained); err != nil {
		return tracking.Result{}, err
	}
	s.metrics.XP("activity", res.Activity.XPEarned)
	return res, nil
}

// Commit helpers

func (s *ProgressionService) commit(ctx context.Context, op string, t *state.Transition) error {
	c := storage.Commit{Progress: t.Progress}
	if t.CharacterChanged {
		c.Character = t.Character
	}
	if err := s.store.Commit(ctx, c); err != nil {
		return s.fail(ctx, op, err)
	}

	s.metrics.Transition(op)
	s.metrics.LevelUps(t.Rewards.LevelsGained)
	if t.Rewards.XP > 0 {
		source := "adventure"
		if t.Combat != nil {
			source = "combat"
		}
		s.metrics.XP(source, t.Rewards.XP)
	}

	log := logger.WithCharacter(s.requestLogger(ctx), t.Progress.CharacterID.String())
	log.Info("Transition committed",
		"operation", op,
		"progress_id", t.Progress.ID,
		"scene", t.Progress.CurrentScene,
		"status", t.Progress.Status())

	if s.publisher != nil {
		if err := s.publisher.PublishTransition(ctx, requestIDFrom(ctx), t); err != nil {
			logger.WithError(log, err).Error("Failed to publish transition events", "progress_id", t.Progress.ID)
		}
	}
	return nil
}

func (s *ProgressionService) commitCharacter(ctx context.Context, op string, c *actor.Character, a *tracking.Activity, levelsGained int) error {
	if err := s.store.Commit(ctx, storage.Commit{Character: c, Activity: a}); err != nil {
		return s.fail(ctx, op, err)
	}
	s.metrics.Transition(op)
	s.metrics.LevelUps(levelsGained)

	log := logger.WithCharacter(s.requestLogger(ctx), c.Spec.ID.String())
	log.Info("Character updated",
		"operation", op,
		"level", c.Spec.Level,
		"current_xp", c.Spec.CurrentXP)

	if levelsGained > 0 && s.publisher != nil {
		if err := s.publisher.PublishLeveled(ctx, c.Spec.ID, requestIDFrom(ctx), c.Spec.Level, levelsGained); err != nil {
			logger.WithError(log, err).Error("Failed to publish level event")
		}
	}
	return nil
}

func (s *ProgressionService) requestLogger(ctx context.Context) *slog.Logger {
	return logger.WithRequestID(s.logger, requestIDFrom(ctx))
}

// fail records err and returns it unchanged. Invariant breaches are logged
// with full detail since callers only ever see a generic message.
func (s *ProgressionService) fail(ctx context.Context, op string, err error) error {
	code := gameerr.CodeOf(err)
	s.metrics.TransitionError(op, string(code))

	log := s.requestLogger(ctx).With("operation", op, "code", code)
	switch {
	case !gameerr.IsUserFacing(err):
		logger.WithError(log, err).Error("Progression operation failed")
	case errors.Is(err, gameerr.ErrConflict):
		logger.WithError(log, err).Warn("Progression commit conflicted")
	default:
		log.Info("Progression operation rejected", "reason", gameerr.PublicMessage(err))
	}
	return err
}
