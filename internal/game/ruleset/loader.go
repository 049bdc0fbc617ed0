package ruleset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
)

//go:embed data/aionia.yaml
var defaultTables []byte

// Default returns the rule tables embedded in the binary.
//
// Postcondition: Returns validated Tables; panics only if the embedded file is broken.
func Default() *Tables {
	t, err := Load(bytes.NewReader(defaultTables))
	if err != nil {
		panic("ruleset: embedded tables invalid: " + err.Error())
	}
	return t
}

// LoadFile reads and validates rule tables from a YAML file.
//
// Precondition: path must name a readable YAML file.
// Postcondition: Returns validated Tables or a non-nil error.
func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule tables %s: %w", path, err)
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading rule tables %s: %w", path, err)
	}
	return t, nil
}

// Load parses rule tables from YAML, validates them, and builds the lookup indexes.
//
// Postcondition: Returns validated Tables or a non-nil error.
func Load(r io.Reader) (*Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parsing rule tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.index()
	return &t, nil
}

// Validate checks all rule-table invariants.
//
// Postcondition: Returns nil if the tables are usable, or one error describing all violations.
func (t *Tables) Validate() error {
	var errs []string

	if t.Config.MaxWeaknesses < 1 {
		errs = append(errs, fmt.Sprintf("config.max_weaknesses must be >= 1, got %d", t.Config.MaxWeaknesses))
	}
	if t.Config.MaxSpecialSkills < 1 {
		errs = append(errs, fmt.Sprintf("config.max_special_skills must be >= 1, got %d", t.Config.MaxSpecialSkills))
	}
	if t.Config.MaxImages < 0 {
		errs = append(errs, fmt.Sprintf("config.max_images must be >= 0, got %d", t.Config.MaxImages))
	}
	if t.Config.MemoMaxLength < 1 {
		errs = append(errs, fmt.Sprintf("config.memo_max_length must be >= 1, got %d", t.Config.MemoMaxLength))
	}
	if t.Config.MemoMinBreakRatio < 0 || t.Config.MemoMinBreakRatio > 1 {
		errs = append(errs, fmt.Sprintf("config.memo_min_break_ratio must be within [0, 1], got %g", t.Config.MemoMinBreakRatio))
	}
	if t.Experience.MaxInitialBonus < 0 {
		errs = append(errs, "experience.max_initial_bonus must not be negative")
	}

	errs = append(errs, uniqueIDs("species", len(t.Species), func(i int) string { return t.Species[i].ID })...)
	errs = append(errs, uniqueIDs("skills", len(t.Skills), func(i int) string { return t.Skills[i].ID })...)
	errs = append(errs, uniqueIDs("special_skills", len(t.SpecialSkills), func(i int) string { return t.SpecialSkills[i].ID })...)
	errs = append(errs, uniqueIDs("weapons", len(t.Weapons), func(i int) string { return t.Weapons[i].ID })...)
	errs = append(errs, uniqueIDs("armors", len(t.Armors), func(i int) string { return t.Armors[i].ID })...)

	hasOther := false
	for _, s := range t.Species {
		if s.ID == SpeciesOther {
			hasOther = true
		}
	}
	if !hasOther {
		errs = append(errs, fmt.Sprintf("species must include %q", SpeciesOther))
	}

	for _, w := range t.Weapons {
		if w.Weight < 0 {
			errs = append(errs, fmt.Sprintf("weapons[%s].weight must not be negative", w.ID))
		}
		if w.Damage == "" {
			continue
		}
		if _, err := dice.Parse(w.Damage); err != nil {
			errs = append(errs, fmt.Sprintf("weapons[%s].damage: %v", w.ID, err))
		}
	}
	for _, a := range t.Armors {
		if a.Weight < 0 {
			errs = append(errs, fmt.Sprintf("armors[%s].weight must not be negative", a.ID))
		}
	}

	if _, err := dice.Parse(t.Commands.TrainedDice); err != nil {
		errs = append(errs, fmt.Sprintf("commands.trained_dice: %v", err))
	}
	if _, err := dice.Parse(t.Commands.UntrainedDice); err != nil {
		errs = append(errs, fmt.Sprintf("commands.untrained_dice: %v", err))
	}

	if len(errs) > 0 {
		return errors.New("rule tables validation failed: " + strings.Join(errs, "; "))
	}
	return nil
}

func uniqueIDs(section string, n int, id func(int) string) []string {
	var errs []string
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := id(i)
		if v == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].id must not be empty", section, i))
			continue
		}
		if seen[v] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", section, v))
		}
		seen[v] = true
	}
	return errs
}
