package character

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// Validate checks the list bounds and numeric invariants of a record against
// the rule tables.
//
// Postcondition: Returns nil, or an apperr validation failure listing every
// violation (metadata key "detail").
func (r *Record) Validate(t *ruleset.Tables) error {
	var errs []string

	if n := len(r.Character.Weaknesses); n > t.Config.MaxWeaknesses {
		errs = append(errs, fmt.Sprintf("weaknesses: %d slots exceed limit %d", n, t.Config.MaxWeaknesses))
	}
	if n := len(r.SpecialSkills); n > t.Config.MaxSpecialSkills {
		errs = append(errs, fmt.Sprintf("specialSkills: %d entries exceed limit %d", n, t.Config.MaxSpecialSkills))
	}
	if n := len(r.Character.Images); n > t.Config.MaxImages {
		errs = append(errs, fmt.Sprintf("images: %d entries exceed limit %d", n, t.Config.MaxImages))
	}
	if r.Character.InitialScar.Float() < 0 {
		errs = append(errs, "initialScar must not be negative")
	}
	if r.Character.CurrentScar.Float() < 0 {
		errs = append(errs, "currentScar must not be negative")
	}

	keys := make(map[string]bool, len(r.Character.Images))
	for i, img := range r.Character.Images {
		switch {
		case img.Key == "":
			errs = append(errs, fmt.Sprintf("images[%d].key must not be empty", i))
		case strings.ContainsAny(img.Key, `/\`) || img.Key == "." || img.Key == "..":
			errs = append(errs, fmt.Sprintf("images[%d].key %q is not a plain name", i, img.Key))
		case keys[img.Key]:
			errs = append(errs, fmt.Sprintf("images[%d].key %q is duplicated", i, img.Key))
		}
		keys[img.Key] = true
		if !IsImageType(img.MimeType) {
			errs = append(errs, fmt.Sprintf("images[%d].mimeType %q is not a supported image type", i, img.MimeType))
		}
	}

	seen := make(map[string]bool, len(r.Skills))
	for i, s := range r.Skills {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("skills[%d].id must not be empty", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("skills: duplicate id %q", s.ID))
		}
		seen[s.ID] = true
	}

	if len(errs) == 0 {
		return nil
	}
	detail := strings.Join(errs, "; ")
	return apperr.WithMetadata(apperr.CodeValidationFailure, "invalid character record: "+detail,
		map[string]string{"detail": detail})
}
