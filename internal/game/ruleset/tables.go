// Package ruleset holds the static game-rule reference data (labels, limits,
// weights, point values) shared read-only by every sheet component.
package ruleset

// SpeciesOther is the species id that enables the free-text rare species field.
const SpeciesOther = "other"

// Limits bounds the size of list-valued sheet fields.
type Limits struct {
	MaxWeaknesses     int     `yaml:"max_weaknesses" json:"maxWeaknesses"`
	MaxSpecialSkills  int     `yaml:"max_special_skills" json:"maxSpecialSkills"`
	MaxImages         int     `yaml:"max_images" json:"maxImages"`
	MemoMaxLength     int     `yaml:"memo_max_length" json:"memoMaxLength"`
	MemoMinBreakRatio float64 `yaml:"memo_min_break_ratio" json:"memoMinBreakRatio"`
}

// ExperienceRules are the point constants of the experience calculation.
type ExperienceRules struct {
	BasePoints      int `yaml:"base_points" json:"basePoints"`
	WeaknessBonus   int `yaml:"weakness_bonus" json:"weaknessBonus"`
	SkillBase       int `yaml:"skill_base" json:"skillBase"`
	ExpertSkill     int `yaml:"expert_skill" json:"expertSkill"`
	SpecialSkill    int `yaml:"special_skill" json:"specialSkill"`
	MaxInitialBonus int `yaml:"max_initial_bonus" json:"maxInitialBonus"`
}

// Species is one selectable species.
type Species struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// SkillDef is one entry of the baseline skill list.
type SkillDef struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	CanHaveExperts bool   `yaml:"can_have_experts" json:"canHaveExperts"`
}

// SpecialSkillOption is one choosable special skill within a group.
type SpecialSkillOption struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	RequiresNote bool   `yaml:"requires_note" json:"requiresNote"`
}

// SpecialSkillGroup is a named group of special-skill options.
type SpecialSkillGroup struct {
	ID      string               `yaml:"id" json:"id"`
	Label   string               `yaml:"label" json:"label"`
	Options []SpecialSkillOption `yaml:"options" json:"options"`
}

// HasOption reports whether name is one of the group's options.
func (g *SpecialSkillGroup) HasOption(name string) bool {
	for _, o := range g.Options {
		if o.Name == name {
			return true
		}
	}
	return false
}

// EquipmentGroup is a weapon or armor category. Damage is empty for armor.
type EquipmentGroup struct {
	ID     string  `yaml:"id" json:"id"`
	Label  string  `yaml:"label" json:"label"`
	Weight float64 `yaml:"weight" json:"weight"`
	Damage string  `yaml:"damage,omitempty" json:"damage,omitempty"`
}

// CommandRules configure the dice notation of exported chat-tool commands.
type CommandRules struct {
	TrainedDice    string `yaml:"trained_dice" json:"trainedDice"`
	UntrainedDice  string `yaml:"untrained_dice" json:"untrainedDice"`
	ExpertModifier int    `yaml:"expert_modifier" json:"expertModifier"`
}

// Tables is the complete rule reference. It is built once by Load and must
// not be mutated afterwards; lookups are safe for concurrent use.
type Tables struct {
	Config        Limits              `yaml:"config" json:"config"`
	Experience    ExperienceRules     `yaml:"experience" json:"experience"`
	Species       []Species           `yaml:"species" json:"species"`
	Skills        []SkillDef          `yaml:"skills" json:"skills"`
	SpecialSkills []SpecialSkillGroup `yaml:"special_skills" json:"specialSkills"`
	Weapons       []EquipmentGroup    `yaml:"weapons" json:"weapons"`
	Armors        []EquipmentGroup    `yaml:"armors" json:"armors"`
	Commands      CommandRules        `yaml:"commands" json:"commands"`

	species      map[string]*Species
	skills       map[string]*SkillDef
	groups       map[string]*SpecialSkillGroup
	requiresNote map[string]bool
	weapons      map[string]*EquipmentGroup
	armors       map[string]*EquipmentGroup
}

func (t *Tables) index() {
	t.species = make(map[string]*Species, len(t.Species))
	for i := range t.Species {
		t.species[t.Species[i].ID] = &t.Species[i]
	}
	t.skills = make(map[string]*SkillDef, len(t.Skills))
	for i := range t.Skills {
		t.skills[t.Skills[i].ID] = &t.Skills[i]
	}
	t.groups = make(map[string]*SpecialSkillGroup, len(t.SpecialSkills))
	t.requiresNote = make(map[string]bool)
	for i := range t.SpecialSkills {
		g := &t.SpecialSkills[i]
		t.groups[g.ID] = g
		for _, o := range g.Options {
			if o.RequiresNote {
				t.requiresNote[o.Name] = true
			}
		}
	}
	t.weapons = indexEquipment(t.Weapons)
	t.armors = indexEquipment(t.Armors)
}

func indexEquipment(groups []EquipmentGroup) map[string]*EquipmentGroup {
	m := make(map[string]*EquipmentGroup, len(groups))
	for i := range groups {
		m[groups[i].ID] = &groups[i]
	}
	return m
}

// SpeciesLabel returns the display label of a species id, or "" if unknown.
func (t *Tables) SpeciesLabel(id string) string {
	if s, ok := t.species[id]; ok {
		return s.Label
	}
	return ""
}

// Skill returns the baseline skill definition for id.
func (t *Tables) Skill(id string) (*SkillDef, bool) {
	s, ok := t.skills[id]
	return s, ok
}

// SpecialSkillGroup returns the special-skill group for id.
func (t *Tables) SpecialSkillGroup(id string) (*SpecialSkillGroup, bool) {
	g, ok := t.groups[id]
	return g, ok
}

// RequiresNote reports whether the special skill name needs a free-text note.
func (t *Tables) RequiresNote(name string) bool {
	return t.requiresNote[name]
}

// WeaponWeight returns the weight of a weapon group; unknown or empty is 0.
func (t *Tables) WeaponWeight(group string) float64 {
	if g, ok := t.weapons[group]; ok {
		return g.Weight
	}
	return 0
}

// ArmorWeight returns the weight of an armor group; unknown or empty is 0.
func (t *Tables) ArmorWeight(group string) float64 {
	if g, ok := t.armors[group]; ok {
		return g.Weight
	}
	return 0
}

// WeaponDamage returns the damage formula of a weapon group, or "".
func (t *Tables) WeaponDamage(group string) string {
	if g, ok := t.weapons[group]; ok {
		return g.Damage
	}
	return ""
}

// WeaponLabel returns the display label of a weapon group, or "".
func (t *Tables) WeaponLabel(group string) string {
	if g, ok := t.weapons[group]; ok {
		return g.Label
	}
	return ""
}

// ArmorLabel returns the display label of an armor group, or "".
func (t *Tables) ArmorLabel(group string) string {
	if g, ok := t.armors[group]; ok {
		return g.Label
	}
	return ""
}
