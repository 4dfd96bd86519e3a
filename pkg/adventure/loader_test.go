package adventure

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jwebster45206/quest-engine/pkg/reward"
)

const sampleAdventure = "../../data/adventures/goblin_caves.yaml"

func TestLoadFile_Sample(t *testing.T) {
	g, err := LoadFile(sampleAdventure)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := g.CheckComplete(); err != nil {
		t.Fatalf("CheckComplete() error = %v", err)
	}

	meta := g.Adventure()
	if meta.ID != "goblin_caves" || meta.MinLevel != 1 || !meta.Published {
		t.Errorf("meta = %+v", meta)
	}
	if len(meta.Rewards) != 2 || meta.Rewards[1].Grant != (reward.Item{EquipmentID: "miners_lamp"}) {
		t.Errorf("rewards = %+v", meta.Rewards)
	}

	chief, ok := g.Enemy("goblin_chief")
	if !ok || chief.Reward == nil || chief.Reward.Grant != (reward.Skill{SkillID: "intimidate"}) {
		t.Errorf("enemy = %+v", chief)
	}

	pick, ok := g.Choice("pick_lock")
	if !ok || pick.SceneID != "mine_entrance" || pick.Requirements.Class != "rogue" {
		t.Errorf("pick_lock = %+v", pick)
	}

	// storeroom was declared after upper_tunnels, so the repair step points
	// the entrance at the most recently inserted child.
	entrance, _ := g.Scene("mine_entrance")
	if entrance.NextScene != "storeroom" {
		t.Errorf("entrance.NextScene = %q", entrance.NextScene)
	}
	chiefHall, _ := g.Scene("chief_hall")
	if chiefHall.NextScene != "village_return" {
		t.Errorf("chief_hall.NextScene = %q", chiefHall.NextScene)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "unknown key",
			yaml:    "id: a\ntitle: A\nmin_level: 1\ndifficulty: easy\nboss_music: loud\nscenes: []\n",
			wantMsg: "boss_music",
		},
		{
			name: "two starts",
			yaml: `id: a
title: A
min_level: 1
difficulty: easy
scenes:
  - {id: s1, order: 0, title: One, is_start: true}
  - {id: s2, order: 1, title: Two, is_start: true}
`,
			wantMsg: "A starting scene already exists: 'One'",
		},
		{
			name: "end scene choice with next",
			yaml: `id: a
title: A
min_level: 1
difficulty: easy
scenes:
  - id: s1
    order: 0
    title: One
    is_start: true
    is_end: true
    choices:
      - {id: c1, text: Go, order: 0, next_scene: s1}
`,
			wantMsg: "An end scene cannot lead to another scene.",
		},
		{
			name: "dangling previous",
			yaml: `id: a
title: A
min_level: 1
difficulty: easy
scenes:
  - {id: s1, order: 0, title: One, previous_scene: ghost}
`,
			wantMsg: "previous scene ghost does not exist",
		},
		{
			name:    "empty",
			yaml:    "",
			wantMsg: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	g, err := LoadFile(sampleAdventure)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Encode(g)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Encode()) error = %v\n%s", err, data)
	}
	if len(back.Scenes()) != len(g.Scenes()) {
		t.Errorf("scene count = %d, want %d", len(back.Scenes()), len(g.Scenes()))
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(sampleAdventure)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "caves.yaml"), src, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	graphs, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(graphs) != 1 || graphs[0].ID() != "goblin_caves" {
		t.Errorf("graphs = %v", graphs)
	}
}
