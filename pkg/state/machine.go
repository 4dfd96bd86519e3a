// Package state holds a character's position in an adventure and moves it
// through the scene graph.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/quest-engine/pkg/actor"
	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/combat"
	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"github.com/jwebster45206/quest-engine/pkg/gameerr"
	"github.com/jwebster45206/quest-engine/pkg/reward"
)

type EventKind string

const (
	EventStarted       EventKind = "progress.started"
	EventAdvanced      EventKind = "progress.advanced"
	EventCombatPending EventKind = "combat.pending"
	EventCombatWon     EventKind = "combat.won"
	EventCombatLost    EventKind = "combat.lost"
	EventCompleted     EventKind = "progress.completed"
	EventAbandoned     EventKind = "progress.abandoned"
	EventLeveled       EventKind = "character.leveled"
)

// Event is something a transition caused.
type Event struct {
	Kind    EventKind `json:"kind"`
	SceneID string    `json:"scene_id,omitempty"`
	Level   int       `json:"level,omitempty"`
}

// Transition is the result of a successful state change. Progress and
// Character are new values; the inputs are never modified.
type Transition struct {
	Progress         *Progress        `json:"progress"`
	Character        *actor.Character `json:"character"`
	CharacterChanged bool             `json:"character_changed"`
	Rewards          reward.Summary   `json:"rewards"`
	Combat           *combat.Outcome  `json:"combat,omitempty"`
	Events           []Event          `json:"events"`
}

// ChoiceView is a choice with its availability for one character.
type ChoiceView struct {
	Choice       adventure.Choice          `json:"choice"`
	Availability conditionals.Availability `json:"availability"`
}

// Machine applies progression transitions. The zero value is usable.
type Machine struct {
	Rewards *reward.Applicator
	Namer   conditionals.Namer
	Now     func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

// Start begins a run at the adventure's start scene. prior holds the
// character's existing runs of this adventure.
func (m *Machine) Start(c *actor.Character, g *adventure.Graph, prior []*Progress) (*Transition, error) {
	if c == nil || g == nil {
		return nil, gameerr.InvalidInput("character and adventure are required")
	}
	if active := FindActive(prior, c.Spec.ID, g.ID()); active != nil {
		return nil, gameerr.DuplicateActiveProgress(fmt.Sprintf(
			"character already has an active run of %s (%s)", g.ID(), active.ID))
	}
	meta := g.Adventure()
	if c.Spec.Level < meta.MinLevel {
		return nil, gameerr.InvalidTransition(fmt.Sprintf("Requires level %d", meta.MinLevel))
	}
	start, ok := g.StartScene()
	if !ok {
		return nil, gameerr.InvariantBreach(fmt.Sprintf("adventure %s has no unique start scene", g.ID()))
	}

	now := m.now()
	t := &Transition{
		Progress: &Progress{
			ID:          uuid.New(),
			CharacterID: c.Spec.ID,
			AdventureID: g.ID(),
			StartedAt:   now,
			UpdatedAt:   now,
		},
		Character: c,
		Events:    []Event{{Kind: EventStarted, SceneID: start.ID}},
	}
	if err := m.enter(t, g, start); err != nil {
		return nil, err
	}
	return t, nil
}

// Choose follows choiceID from the current scene.
func (m *Machine) Choose(p *Progress, choiceID string, c *actor.Character, g *adventure.Graph) (*Transition, error) {
	current, err := m.checkActive(p, c, g)
	if err != nil {
		return nil, err
	}
	if p.PendingCombat {
		return nil, gameerr.InvalidTransition(fmt.Sprintf("the fight in scene '%s' must be resolved first", current.Title))
	}

	choice, ok := g.Choice(choiceID)
	if !ok || choice.SceneID != current.ID {
		return nil, gameerr.InvalidTransition(fmt.Sprintf("choice %s is not available from scene '%s'", choiceID, current.Title))
	}

	avail := conditionals.Evaluate(choice.Requirements, c.Capabilities(), m.Namer)
	if !avail.Available {
		return nil, gameerr.IneligibleChoice(avail.Reason)
	}

	if choice.NextScene == "" {
		return nil, gameerr.InvariantBreach(fmt.Sprintf("choice %s in active scene %s has no next scene", choice.ID, current.ID))
	}
	next, ok := g.Scene(choice.NextScene)
	if !ok {
		return nil, gameerr.InvariantBreach(fmt.Sprintf("choice %s leads to missing scene %s", choice.ID, choice.NextScene))
	}

	t := m.begin(p, c)
	t.Events = append(t.Events, Event{Kind: EventAdvanced, SceneID: next.ID})
	if err := m.enter(t, g, next); err != nil {
		return nil, err
	}
	return t, nil
}

// ResolveCombat fights the enemy of the current fight scene. On defeat the
// run stays active at the fight scene and may be retried.
func (m *Machine) ResolveCombat(p *Progress, c *actor.Character, g *adventure.Graph, rng combat.Roller) (*Transition, error) {
	current, err := m.checkActive(p, c, g)
	if err != nil {
		return nil, err
	}
	if !current.IsFight {
		return nil, gameerr.InvalidTransition(fmt.Sprintf("scene '%s' is not a fight scene", current.Title))
	}
	if !p.PendingCombat {
		return nil, gameerr.InvalidTransition(fmt.Sprintf("the fight in scene '%s' is already won", current.Title))
	}
	enemy, ok := g.Enemy(current.EnemyID)
	if !ok {
		return nil, gameerr.InvariantBreach(fmt.Sprintf("fight scene %s references missing enemy %q", current.ID, current.EnemyID))
	}

	outcome, err := combat.Resolve(
		combat.Combatant{HP: c.HP(), Level: c.Spec.Level},
		combat.Opponent{
			Name:      enemy.Name,
			HP:        enemy.HP,
			MinDamage: enemy.MinDamage,
			MaxDamage: enemy.MaxDamage,
			XPReward:  enemy.XPReward,
			Reward:    enemy.Reward,
		},
		rng,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve combat: %w", err)
	}

	t := m.begin(p, c)
	t.Combat = &outcome

	if outcome.Winner != combat.WinnerCharacter {
		t.Events = append(t.Events, Event{Kind: EventCombatLost, SceneID: current.ID})
		return t, nil
	}

	var grants []reward.Reward
	if outcome.XPGained > 0 {
		grants = append(grants, reward.Reward{
			Description: fmt.Sprintf("Defeated %s", enemy.Name),
			Grant:       reward.XP{Amount: outcome.XPGained},
		})
	}
	grants = append(grants, outcome.Rewards...)
	if err := m.grant(t, grants, "combat:"+enemy.ID); err != nil {
		return nil, err
	}
	t.Progress.PendingCombat = false
	t.Events = append(t.Events, Event{Kind: EventCombatWon, SceneID: current.ID})
	return t, nil
}

// Abandon ends an active run without rewards so the adventure can be restarted.
func (m *Machine) Abandon(p *Progress, c *actor.Character, g *adventure.Graph) (*Transition, error) {
	current, err := m.checkActive(p, c, g)
	if err != nil {
		return nil, err
	}
	t := m.begin(p, c)
	at := t.Progress.UpdatedAt
	t.Progress.Completed = true
	t.Progress.Abandoned = true
	t.Progress.PendingCombat = false
	t.Progress.CompletedAt = &at
	t.Events = append(t.Events, Event{Kind: EventAbandoned, SceneID: current.ID})
	return t, nil
}

// Choices lists the choices of the current scene with their availability.
func (m *Machine) Choices(p *Progress, c *actor.Character, g *adventure.Graph) ([]ChoiceView, error) {
	if p == nil || g == nil {
		return nil, gameerr.InvalidInput("progress and adventure are required")
	}
	if _, ok := g.Scene(p.CurrentScene); !ok {
		return nil, gameerr.InvariantBreach(fmt.Sprintf("current scene %s is missing from adventure %s", p.CurrentScene, g.ID()))
	}
	choices := g.ChoicesFor(p.CurrentScene)
	views := make([]ChoiceView, len(choices))
	for i, ch := range choices {
		views[i] = ChoiceView{
			Choice:       ch,
			Availability: conditionals.Evaluate(ch.Requirements, c.Capabilities(), m.Namer),
		}
	}
	return views, nil
}

func (m *Machine) checkActive(p *Progress, c *actor.Character, g *adventure.Graph) (adventure.Scene, error) {
	if p == nil || c == nil || g == nil {
		return adventure.Scene{}, gameerr.InvalidInput("progress, character and adventure are required")
	}
	if p.CharacterID != c.Spec.ID {
		return adventure.Scene{}, gameerr.InvalidInput("progress belongs to a different character")
	}
	if p.AdventureID != g.ID() {
		return adventure.Scene{}, gameerr.InvalidInput("progress belongs to a different adventure")
	}
	if p.Completed {
		return adventure.Scene{}, gameerr.InvalidTransition("this adventure run is already completed")
	}
	current, ok := g.Scene(p.CurrentScene)
	if !ok {
		return adventure.Scene{}, gameerr.InvariantBreach(fmt.Sprintf("current scene %s is missing from adventure %s", p.CurrentScene, g.ID()))
	}
	if current.IsEnd {
		return adventure.Scene{}, gameerr.InvariantBreach(fmt.Sprintf("run %s is active at end scene %s", p.ID, current.ID))
	}
	return current, nil
}

func (m *Machine) begin(p *Progress, c *actor.Character) *Transition {
	next := p.Clone()
	next.UpdatedAt = m.now()
	return &Transition{Progress: next, Character: c}
}

// enter moves t onto scene and applies fight and end semantics.
func (m *Machine) enter(t *Transition, g *adventure.Graph, scene adventure.Scene) error {
	p := t.Progress
	p.CurrentScene = scene.ID
	p.Path = append(p.Path, scene.ID)

	if scene.IsFight {
		p.PendingCombat = true
		t.Events = append(t.Events, Event{Kind: EventCombatPending, SceneID: scene.ID})
		return nil
	}
	if !scene.IsEnd {
		return nil
	}

	meta := g.Adventure()
	grants := make([]reward.Reward, 0, len(meta.Rewards)+1)
	if meta.BaseXPReward > 0 {
		grants = append(grants, reward.Reward{
			Description: fmt.Sprintf("Completed %s", meta.Title),
			Grant:       reward.XP{Amount: meta.BaseXPReward},
		})
	}
	grants = append(grants, meta.Rewards...)
	if err := m.grant(t, grants, "adventure:"+meta.ID); err != nil {
		return err
	}

	at := p.UpdatedAt
	p.Completed = true
	p.CompletedAt = &at
	t.Events = append(t.Events, Event{Kind: EventCompleted, SceneID: scene.ID})
	return nil
}

func (m *Machine) grant(t *Transition, grants []reward.Reward, source string) error {
	if len(grants) == 0 {
		return nil
	}
	var app reward.Applicator
	if m.Rewards != nil {
		app = *m.Rewards
	}
	app.Source = source
	if app.Now == nil {
		app.Now = m.now
	}

	next, sum, err := app.Apply(t.Character, grants)
	if err != nil {
		return fmt.Errorf("apply rewards: %w", err)
	}
	t.Character = next
	t.CharacterChanged = true
	t.Rewards = mergeSummary(t.Rewards, sum)
	t.Progress.XPEarned += sum.XP
	t.Progress.CurrencyEarned += sum.CurrencyDelta
	if sum.LevelsGained > 0 {
		t.Events = append(t.Events, Event{Kind: EventLeveled, Level: next.Spec.Level})
	}
	return nil
}

func mergeSummary(a, b reward.Summary) reward.Summary {
	a.XP += b.XP
	a.LevelsGained += b.LevelsGained
	a.CurrencyDelta += b.CurrencyDelta
	a.Items = append(a.Items, b.Items...)
	a.Skills = append(a.Skills, b.Skills...)
	a.AlreadyOwned = append(a.AlreadyOwned, b.AlreadyOwned...)
	return a
}
