// Package adventure holds the scene graph of an adventure and enforces its
// structural rules on every mutation.
package adventure

import (
	"github.com/jwebster45206/quest-engine/pkg/conditionals"
	"github.com/jwebster45206/quest-engine/pkg/reward"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyHard      Difficulty = "hard"
	DifficultyLegendary Difficulty = "legendary"
)

// Adventure is the metadata of a playable branching narrative.
type Adventure struct {
	ID                string          `json:"id" yaml:"id" validate:"required"`
	Title             string          `json:"title" yaml:"title" validate:"required"`
	Description       string          `json:"description,omitempty" yaml:"description,omitempty"`
	MinLevel          int             `json:"min_level" yaml:"min_level" validate:"min=1"`
	BaseXPReward      int             `json:"base_xp_reward" yaml:"base_xp_reward" validate:"min=0"`
	Rewards           []reward.Reward `json:"rewards,omitempty" yaml:"rewards,omitempty"`
	Difficulty        Difficulty      `json:"difficulty" yaml:"difficulty" validate:"oneof=easy medium hard legendary"`
	EstimatedDuration int             `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty" validate:"min=0"` // minutes
	Published         bool            `json:"is_published" yaml:"is_published"`
}

// Scene is a single narrative node. PreviousScene and NextScene are
// references by ID into the same adventure; neither owns the other.
type Scene struct {
	ID            string `json:"id" yaml:"id" validate:"required"`
	AdventureID   string `json:"adventure_id" yaml:"-" validate:"required"`
	Order         int    `json:"order" yaml:"order" validate:"min=0"`
	Title         string `json:"title" yaml:"title" validate:"required"`
	Content       string `json:"content,omitempty" yaml:"content,omitempty"`
	PreviousScene string `json:"previous_scene,omitempty" yaml:"previous_scene,omitempty"`
	NextScene     string `json:"next_scene,omitempty" yaml:"next_scene,omitempty"`
	IsStart       bool   `json:"is_start" yaml:"is_start"`
	IsEnd         bool   `json:"is_end" yaml:"is_end"`
	IsFight       bool   `json:"is_fight" yaml:"is_fight"`
	EnemyID       string `json:"enemy,omitempty" yaml:"enemy,omitempty"`
}

// Choice is a player-facing option leading from SceneID to NextScene.
type Choice struct {
	ID           string                    `json:"id" yaml:"id" validate:"required"`
	SceneID      string                    `json:"scene" yaml:"-" validate:"required"`
	Text         string                    `json:"text" yaml:"text" validate:"required"`
	Order        int                       `json:"order" yaml:"order" validate:"min=0"`
	NextScene    string                    `json:"next_scene,omitempty" yaml:"next_scene,omitempty"`
	Requirements conditionals.Requirements `json:"requirements" yaml:"requirements,omitempty"`
}

// Enemy is a combat opponent.
type Enemy struct {
	ID          string         `json:"id" yaml:"id" validate:"required"`
	Name        string         `json:"name" yaml:"name" validate:"required"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	HP          int            `json:"hp" yaml:"hp" validate:"min=1"`
	MinDamage   int            `json:"min_damage" yaml:"min_damage" validate:"min=0"`
	MaxDamage   int            `json:"max_damage" yaml:"max_damage" validate:"min=1,gtefield=MinDamage"`
	Skills      []string       `json:"skills,omitempty" yaml:"skills,omitempty"`
	IsBoss      bool           `json:"is_boss" yaml:"is_boss"`
	Reward      *reward.Reward `json:"reward,omitempty" yaml:"reward,omitempty"`
	XPReward    int            `json:"xp_reward" yaml:"xp_reward" validate:"min=0"`
}
