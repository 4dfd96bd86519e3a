package adventure

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// file is the authoring layout: choices nest under their scene.
type file struct {
	Adventure `yaml:",inline"`
	Enemies   []Enemy     `yaml:"enemies,omitempty"`
	Scenes    []sceneFile `yaml:"scenes"`
}

type sceneFile struct {
	Scene   `yaml:",inline"`
	Choices []Choice `yaml:"choices,omitempty"`
}

// Parse decodes an adventure YAML document and builds its graph. Unknown
// keys are rejected.
func Parse(data []byte) (*Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("adventure document is empty")
		}
		return nil, fmt.Errorf("failed to parse adventure yaml: %w", err)
	}

	doc := Document{Adventure: f.Adventure, Enemies: f.Enemies}
	for _, sf := range f.Scenes {
		s := sf.Scene
		s.AdventureID = f.ID
		doc.Scenes = append(doc.Scenes, s)
		for _, c := range sf.Choices {
			c.SceneID = s.ID
			doc.Choices = append(doc.Choices, c)
		}
	}
	return Assemble(doc)
}

// LoadFile reads and parses an adventure YAML file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adventure file: %w", err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return g, nil
}

// LoadDir loads every .yaml/.yml file in dir, sorted by name.
func LoadDir(dir string) ([]*Graph, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read adventures directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	graphs := make([]*Graph, 0, len(names))
	for _, name := range names {
		g, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// Encode renders g in the authoring layout.
func Encode(g *Graph) ([]byte, error) {
	f := file{Adventure: g.meta, Enemies: g.Enemies()}
	for _, s := range g.Scenes() {
		f.Scenes = append(f.Scenes, sceneFile{Scene: s, Choices: g.ChoicesFor(s.ID)})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode adventure: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Index locates scenes across several adventures.
type Index map[string]string

// NewIndex maps every scene ID in graphs to its adventure.
func NewIndex(graphs ...*Graph) Index {
	idx := Index{}
	for _, g := range graphs {
		for id, s := range g.scenes {
			idx[id] = s.AdventureID
		}
	}
	return idx
}

// LocateScene implements SceneLocator.
func (idx Index) LocateScene(sceneID string) (string, bool) {
	adv, ok := idx[sceneID]
	return adv, ok
}
