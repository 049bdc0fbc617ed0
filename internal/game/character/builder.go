package character

import "github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"

// New constructs a blank character sheet from the rule tables.
//
// Precondition: t must be non-nil.
// Postcondition: Every baseline skill is present and unchecked; there are
// exactly t.Config.MaxWeaknesses weakness slots; the scars are linked.
func New(t *ruleset.Tables) *Record {
	r := &Record{
		Character: Character{
			InitialScar:              NumOf(0),
			CurrentScar:              NumOf(0),
			LinkCurrentToInitialScar: true,
			Weaknesses:               []WeaknessSlot{},
			Images:                   []Image{},
		},
		Skills:        []Skill{},
		SpecialSkills: []SpecialSkill{},
		Histories:     []HistoryEntry{},
	}
	r.Normalize(t)
	return r
}

// Normalize brings a loaded record in line with the current rule tables:
// missing baseline skills are appended, CanHaveExperts is reset from the
// tables, weakness slots are padded to the configured count, ShowNote is
// recomputed, and nil lists become empty.
//
// Postcondition: Normalize is idempotent.
func (r *Record) Normalize(t *ruleset.Tables) {
	if r.Character.Images == nil {
		r.Character.Images = []Image{}
	}
	if r.Character.Weaknesses == nil {
		r.Character.Weaknesses = []WeaknessSlot{}
	}
	for len(r.Character.Weaknesses) < t.Config.MaxWeaknesses {
		r.Character.Weaknesses = append(r.Character.Weaknesses, WeaknessSlot{Acquired: AcquiredUnset})
	}
	for i := range r.Character.Weaknesses {
		if r.Character.Weaknesses[i].Acquired == "" {
			r.Character.Weaknesses[i].Acquired = AcquiredUnset
		}
	}

	if r.Skills == nil {
		r.Skills = []Skill{}
	}
	for _, def := range t.Skills {
		s := r.Skill(def.ID)
		if s == nil {
			r.Skills = append(r.Skills, Skill{ID: def.ID, Name: def.Name, CanHaveExperts: def.CanHaveExperts, Experts: []Expert{}})
			continue
		}
		s.Name = def.Name
		s.CanHaveExperts = def.CanHaveExperts
	}
	for i := range r.Skills {
		if r.Skills[i].Experts == nil {
			r.Skills[i].Experts = []Expert{}
		}
	}

	if r.SpecialSkills == nil {
		r.SpecialSkills = []SpecialSkill{}
	}
	for i := range r.SpecialSkills {
		r.SpecialSkills[i].ShowNote = t.RequiresNote(r.SpecialSkills[i].Name)
	}

	if r.Histories == nil {
		r.Histories = []HistoryEntry{}
	}
}
