package character

import (
	"strings"

	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// Derived bundles the values computed from a record. It is produced on every
// read and never stored.
type Derived struct {
	MaxExperience       int     `json:"maxExperience"`
	CurrentExperience   int     `json:"currentExperience"`
	RemainingExperience int     `json:"remainingExperience"`
	Weight              float64 `json:"weight"`
	Scar                float64 `json:"scar"`
}

// Derive computes every derived value of r.
func Derive(r *Record, t *ruleset.Tables) Derived {
	maxExp := MaxExperience(r, t)
	curExp := CurrentExperience(r, t)
	return Derived{
		MaxExperience:       maxExp,
		CurrentExperience:   curExp,
		RemainingExperience: maxExp - curExp,
		Weight:              Weight(r.Equipments, t),
		Scar:                Scar(r),
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// MaxExperience returns the experience points available to the character:
// base points, plus the initial bonus (initial scar and weaknesses taken at
// creation, capped), plus every non-negative session award.
func MaxExperience(r *Record, t *ruleset.Tables) int {
	rules := t.Experience

	creationWeaknesses := 0
	for _, w := range r.Character.Weaknesses {
		if !isBlank(w.Text) && w.Acquired == AcquiredAtCreation {
			creationWeaknesses++
		}
	}
	initialBonus := r.Character.InitialScar.Int() + rules.WeaknessBonus*creationWeaknesses
	initialBonus = min(initialBonus, rules.MaxInitialBonus)

	historyExp := 0
	for _, h := range r.Histories {
		historyExp += max(0, h.GotExperiments.Int())
	}

	return rules.BasePoints + initialBonus + historyExp
}

// CurrentExperience returns the experience points spent on checked skills,
// their non-blank experts, and named special skills. Unchecked skills and
// their experts cost nothing.
func CurrentExperience(r *Record, t *ruleset.Tables) int {
	rules := t.Experience
	total := 0
	for _, s := range r.Skills {
		if !s.Checked {
			continue
		}
		total += rules.SkillBase
		if !s.CanHaveExperts {
			continue
		}
		for _, e := range s.Experts {
			if !isBlank(e.Value) {
				total += rules.ExpertSkill
			}
		}
	}
	for _, s := range r.SpecialSkills {
		if !isBlank(s.Name) {
			total += rules.SpecialSkill
		}
	}
	return total
}

// Weight returns the carried weight of both weapons and the armor. Unknown
// or empty groups weigh nothing.
func Weight(eq Equipments, t *ruleset.Tables) float64 {
	return t.WeaponWeight(eq.Weapon1.Group) +
		t.WeaponWeight(eq.Weapon2.Group) +
		t.ArmorWeight(eq.Armor.Group)
}

// Scar returns the initial scar plus every scar increase in the adventure
// log. Null or non-numeric entries count as 0.
func Scar(r *Record) float64 {
	total := r.Character.InitialScar.Float()
	for _, h := range r.Histories {
		total += h.IncreasedScar.Float()
	}
	return total
}
