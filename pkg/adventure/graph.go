package adventure

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/jwebster45206/quest-engine/pkg/validation"
)

// SceneLocator reports which adventure owns a scene ID. It lets a graph
// recognise references into other adventures.
type SceneLocator interface {
	LocateScene(sceneID string) (adventureID string, ok bool)
}

// Graph is the arena holding one adventure's scenes, choices and enemies,
// indexed by ID. All cross references are IDs into these tables.
type Graph struct {
	meta    Adventure
	scenes  map[string]*Scene
	choices map[string]*Choice
	enemies map[string]*Enemy
	locator SceneLocator
}

// NewGraph returns an empty graph for meta.
func NewGraph(meta Adventure) (*Graph, error) {
	if err := checkFields(meta.ID, meta); err != nil {
		return nil, err
	}
	for i, r := range meta.Rewards {
		if err := r.Validate(); err != nil {
			return nil, violation(RuleInvalidField, meta.ID, "rewards", "reward %d: %s", i, err)
		}
	}
	return &Graph{
		meta:    meta,
		scenes:  make(map[string]*Scene),
		choices: make(map[string]*Choice),
		enemies: make(map[string]*Enemy),
	}, nil
}

// SetLocator installs l for cross-adventure checks on choices.
func (g *Graph) SetLocator(l SceneLocator) { g.locator = l }

func (g *Graph) ID() string { return g.meta.ID }

func (g *Graph) Adventure() Adventure { return g.meta }

// SetAdventure replaces the metadata. The ID cannot change.
func (g *Graph) SetAdventure(meta Adventure) error {
	if meta.ID != g.meta.ID {
		return violation(RuleCrossAdventure, meta.ID, "id", "adventure id cannot change from %s", g.meta.ID)
	}
	if err := checkFields(meta.ID, meta); err != nil {
		return err
	}
	g.meta = meta
	return nil
}

func (g *Graph) Scene(id string) (Scene, bool) {
	s, ok := g.scenes[id]
	if !ok {
		return Scene{}, false
	}
	return *s, true
}

func (g *Graph) Choice(id string) (Choice, bool) {
	c, ok := g.choices[id]
	if !ok {
		return Choice{}, false
	}
	return *c, true
}

func (g *Graph) Enemy(id string) (Enemy, bool) {
	e, ok := g.enemies[id]
	if !ok {
		return Enemy{}, false
	}
	return *e, true
}

// Scenes returns all scenes sorted by order.
func (g *Graph) Scenes() []Scene {
	out := make([]Scene, 0, len(g.scenes))
	for _, s := range g.scenes {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Scene) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// ChoicesFor returns the choices leaving sceneID sorted by order.
func (g *Graph) ChoicesFor(sceneID string) []Choice {
	var out []Choice
	for _, c := range g.choices {
		if c.SceneID == sceneID {
			out = append(out, *c)
		}
	}
	slices.SortFunc(out, func(a, b Choice) int { return cmp.Compare(a.Order, b.Order) })
	return out
}

// Enemies returns all enemies sorted by ID.
func (g *Graph) Enemies() []Enemy {
	out := make([]Enemy, 0, len(g.enemies))
	for _, id := range slices.Sorted(maps.Keys(g.enemies)) {
		out = append(out, *g.enemies[id])
	}
	return out
}

// StartScene returns the unique start scene.
func (g *Graph) StartScene() (Scene, bool) {
	var found *Scene
	for _, s := range g.scenes {
		if s.IsStart {
			if found != nil {
				return Scene{}, false
			}
			found = s
		}
	}
	if found == nil {
		return Scene{}, false
	}
	return *found, true
}

// LocateScene implements SceneLocator for a single graph.
func (g *Graph) LocateScene(sceneID string) (string, bool) {
	s, ok := g.scenes[sceneID]
	if !ok {
		return "", false
	}
	return s.AdventureID, true
}

// PutEnemy validates and stores e.
func (g *Graph) PutEnemy(e Enemy) error {
	if err := g.ValidateEnemy(e); err != nil {
		return err
	}
	g.enemies[e.ID] = &e
	return nil
}

// PutScene validates and stores s. When s is new and names a previous
// scene, the previous scene's forward pointer is repaired. It returns the IDs
// of every scene written.
func (g *Graph) PutScene(s Scene) ([]string, error) {
	if err := g.ValidateScene(s); err != nil {
		return nil, err
	}
	_, exists := g.scenes[s.ID]
	g.scenes[s.ID] = &s
	touched := []string{s.ID}

	if !exists && s.PreviousScene != "" {
		changed, err := g.LinkPrevious(s.ID)
		if err != nil {
			return touched, err
		}
		if changed {
			touched = append(touched, s.PreviousScene)
		}
	}
	return touched, nil
}

// PutChoice validates and stores c.
func (g *Graph) PutChoice(c Choice) error {
	if err := g.ValidateChoice(c); err != nil {
		return err
	}
	g.choices[c.ID] = &c
	return nil
}

// LinkPrevious points the previous scene of sceneID forward at sceneID.
// It reports whether anything changed; applying it twice changes nothing.
func (g *Graph) LinkPrevious(sceneID string) (bool, error) {
	s, ok := g.scenes[sceneID]
	if !ok {
		return false, violation(RuleUnknownScene, sceneID, "id", "scene %s does not exist", sceneID)
	}
	if s.PreviousScene == "" {
		return false, nil
	}
	prev, ok := g.scenes[s.PreviousScene]
	if !ok {
		return false, violation(RuleUnknownScene, sceneID, "previous_scene",
			"previous scene %s does not exist", s.PreviousScene)
	}
	if prev.NextScene == sceneID {
		return false, nil
	}
	prev.NextScene = sceneID
	return true, nil
}

// Clone returns an independent copy of g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		meta:    g.meta,
		scenes:  make(map[string]*Scene, len(g.scenes)),
		choices: make(map[string]*Choice, len(g.choices)),
		enemies: make(map[string]*Enemy, len(g.enemies)),
		locator: g.locator,
	}
	out.meta.Rewards = slices.Clone(g.meta.Rewards)
	for id, s := range g.scenes {
		c := *s
		out.scenes[id] = &c
	}
	for id, c := range g.choices {
		cc := *c
		out.choices[id] = &cc
	}
	for id, e := range g.enemies {
		ec := *e
		ec.Skills = slices.Clone(e.Skills)
		out.enemies[id] = &ec
	}
	return out
}

// Document is the flat, persistable form of a Graph.
type Document struct {
	Adventure Adventure `json:"adventure"`
	Enemies   []Enemy   `json:"enemies,omitempty"`
	Scenes    []Scene   `json:"scenes"`
	Choices   []Choice  `json:"choices,omitempty"`
}

// Document flattens g.
func (g *Graph) Document() Document {
	doc := Document{
		Adventure: g.meta,
		Enemies:   g.Enemies(),
		Scenes:    g.Scenes(),
	}
	for _, s := range doc.Scenes {
		doc.Choices = append(doc.Choices, g.ChoicesFor(s.ID)...)
	}
	return doc
}

// Assemble builds a graph from an authored doc, applying every entity through
// the validator. Scenes are inserted once their previous scene exists and their
// forward pointers are applied afterwards, so document order does not matter.
// A scene that omits next_scene keeps the pointer set by inserting the scenes
// that name it as previous.
func Assemble(doc Document) (*Graph, error) {
	return assemble(doc, false)
}

// Restore rebuilds a saved graph. Unlike Assemble, every forward pointer
// comes from doc, including cleared ones.
func Restore(doc Document) (*Graph, error) {
	return assemble(doc, true)
}

func assemble(doc Document, exact bool) (*Graph, error) {
	g, err := NewGraph(doc.Adventure)
	if err != nil {
		return nil, err
	}
	for _, e := range doc.Enemies {
		if err := g.PutEnemy(e); err != nil {
			return nil, err
		}
	}

	pending := make([]Scene, len(doc.Scenes))
	for i, s := range doc.Scenes {
		if s.AdventureID == "" {
			s.AdventureID = doc.Adventure.ID
		}
		pending[i] = s
	}
	for len(pending) > 0 {
		var deferred []Scene
		for _, s := range pending {
			if s.PreviousScene != "" && s.PreviousScene != s.ID {
				if _, ok := g.scenes[s.PreviousScene]; !ok {
					deferred = append(deferred, s)
					continue
				}
			}
			insert := s
			insert.NextScene = ""
			if _, err := g.PutScene(insert); err != nil {
				return nil, err
			}
		}
		if len(deferred) == len(pending) {
			s := deferred[0]
			return nil, violation(RuleUnknownScene, s.ID, "previous_scene",
				"previous scene %s does not exist", s.PreviousScene)
		}
		pending = deferred
	}
	for _, s := range doc.Scenes {
		if s.NextScene == "" && !exact {
			continue
		}
		current := *g.scenes[s.ID]
		if current.NextScene == s.NextScene {
			continue
		}
		current.NextScene = s.NextScene
		if _, err := g.PutScene(current); err != nil {
			return nil, err
		}
	}

	for _, c := range doc.Choices {
		if err := g.PutChoice(c); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Document())
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal adventure document: %w", err)
	}
	built, err := Restore(doc)
	if err != nil {
		return err
	}
	*g = *built
	return nil
}

func checkFields(id string, v any) error {
	if err := validation.Struct(v); err != nil {
		if fe, ok := err.(*validation.FieldError); ok {
			return violation(RuleInvalidField, id, fe.Field, "%s", fe.Error())
		}
		return violation(RuleInvalidField, id, "", "%s", err.Error())
	}
	return nil
}
