package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/quest-engine/pkg/adventure"
	"github.com/jwebster45206/quest-engine/pkg/reward"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <adventure.yaml> [more.yaml...]\n", os.Args[0])
		os.Exit(1)
	}

	validator := &AdventureValidator{sceneOwners: map[string]string{}}
	failed := false
	for _, filename := range os.Args[1:] {
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}

	fmt.Println("Adventure files are valid!")
}

type AdventureValidator struct {
	errors []string
	// scene ID -> file that declared it, across every file checked
	sceneOwners map[string]string
}

func (v *AdventureValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	// Validate filename format
	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("adventure file must have .yaml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ext)
	if !isValidAdventureFilename(nameWithoutExt) {
		return fmt.Errorf("adventure filename '%s' must be lowercase snake_case (e.g., my_adventure.yaml, not my-adventure.yaml or MyAdventure.yaml)", baseName)
	}

	v.errors = nil

	g, err := adventure.LoadFile(filename)
	if err != nil {
		return err
	}
	if g.ID() != strings.TrimPrefix(nameWithoutExt, "x.") {
		v.addError(fmt.Sprintf("adventure id '%s' does not match filename '%s'", g.ID(), baseName))
	}

	v.validateAdventure(g, filename)
	if err := g.CheckComplete(); err != nil {
		v.addError(err.Error())
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

func (v *AdventureValidator) validateAdventure(g *adventure.Graph, filename string) {
	v.validateIDFormat("adventure ID", g.ID())
	for _, r := range g.Adventure().Rewards {
		v.validateReward(r, "adventure reward")
	}

	for _, e := range g.Enemies() {
		v.validateIDFormat("enemy ID", e.ID)
		if e.Reward != nil {
			v.validateReward(*e.Reward, fmt.Sprintf("enemy %s reward", e.ID))
		}
	}

	for _, s := range g.Scenes() {
		v.validateIDFormat("scene ID", s.ID)
		if owner, ok := v.sceneOwners[s.ID]; ok && owner != filename {
			v.addError(fmt.Sprintf("scene ID '%s' is also declared in %s", s.ID, owner))
		} else {
			v.sceneOwners[s.ID] = filename
		}

		for _, c := range g.ChoicesFor(s.ID) {
			v.validateIDFormat("choice ID", c.ID)
			v.validateIDFormat(fmt.Sprintf("choice %s required_class", c.ID), c.Requirements.Class)
			v.validateIDFormat(fmt.Sprintf("choice %s required_skill", c.ID), c.Requirements.Skill)
			v.validateIDFormat(fmt.Sprintf("choice %s required_equipment", c.ID), c.Requirements.Equipment)
		}
	}
}

func (v *AdventureValidator) validateReward(r reward.Reward, context string) {
	switch g := r.Grant.(type) {
	case reward.Item:
		v.validateIDFormat(context+" item", g.EquipmentID)
	case reward.Skill:
		v.validateIDFormat(context+" skill", g.SkillID)
	}
}

func (v *AdventureValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *AdventureValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidAdventureFilename(name string) bool {
	// Allow 'x.' prefix for experimental adventures
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
