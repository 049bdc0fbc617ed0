// Package export renders character records into external formats: the
// memo and command blocks pasted into the cocofolia chat tool, and the
// printable HTML sheet.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/dice"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// Export is the rendered chat-tool text.
type Export struct {
	Memo     string
	Commands string
}

// Text joins the memo and command blocks for the clipboard.
func (e Export) Text() string {
	switch {
	case e.Memo == "":
		return e.Commands
	case e.Commands == "":
		return e.Memo
	}
	return e.Memo + "\n\n" + e.Commands
}

type clipboardStatus struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

type clipboardParam struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type clipboardData struct {
	Name        string            `json:"name"`
	Memo        string            `json:"memo"`
	Initiative  int               `json:"initiative"`
	ExternalURL string            `json:"externalUrl"`
	Status      []clipboardStatus `json:"status"`
	Params      []clipboardParam  `json:"params"`
	Commands    string            `json:"commands"`
}

type clipboardPiece struct {
	Kind string        `json:"kind"`
	Data clipboardData `json:"data"`
}

// ClipboardJSON renders the character-piece object that cocofolia accepts
// when pasted into a room.
func (e Export) ClipboardJSON(r *character.Record, d character.Derived, externalURL string) ([]byte, error) {
	piece := clipboardPiece{
		Kind: "character",
		Data: clipboardData{
			Name:        r.Character.Name,
			Memo:        e.Memo,
			ExternalURL: externalURL,
			Status: []clipboardStatus{
				// Scar has no ceiling; the bar is shown full at the current value.
				{Label: "傷痕", Value: d.Scar, Max: d.Scar},
			},
			Params: []clipboardParam{
				{Label: "経験点", Value: fmt.Sprintf("%d/%d", d.CurrentExperience, d.MaxExperience)},
				{Label: "重量", Value: formatFloat(d.Weight)},
			},
			Commands: e.Commands,
		},
	}
	b, err := json.Marshal(piece)
	if err != nil {
		return nil, fmt.Errorf("encoding clipboard piece: %w", err)
	}
	return b, nil
}

// Cocofolia renders the memo and command blocks of r.
//
// Postcondition: Empty memo sections are omitted; Commands holds one line per
// baseline skill, per non-blank expert of a checked skill, and per weapon
// with a damage formula.
func Cocofolia(r *character.Record, t *ruleset.Tables) Export {
	var sections []string
	add := func(title string, lines []string) {
		if len(lines) > 0 {
			sections = append(sections, "【"+title+"】\n"+strings.Join(lines, "\n"))
		}
	}
	add("基本情報", basicInfoLines(r, t))
	add("弱点", weaknessLines(r))
	add("技能", skillLines(r))
	add("特技", specialSkillLines(r, t))
	add("装備", equipmentLines(r, t))
	if s := strings.TrimSpace(r.Character.OtherItems); s != "" {
		add("所持品", []string{s})
	}
	if s := strings.TrimSpace(r.Character.Memo); s != "" {
		add("メモ", []string{TruncateMemo(s, t.Config.MemoMaxLength, t.Config.MemoMinBreakRatio)})
	}

	return Export{
		Memo:     strings.Join(sections, "\n\n"),
		Commands: strings.Join(commandLines(r, t), "\n"),
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func labelled(label, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return label + "：" + value, true
}

// SpeciesName returns the display name of the species, preferring the
// free-text rare species for the "other" sentinel.
func SpeciesName(c character.Character, t *ruleset.Tables) string {
	if c.Species == ruleset.SpeciesOther && !isBlank(c.RareSpecies) {
		return strings.TrimSpace(c.RareSpecies)
	}
	return t.SpeciesLabel(c.Species)
}

func basicInfoLines(r *character.Record, t *ruleset.Tables) []string {
	c := r.Character
	fields := []struct{ label, value string }{
		{"名前", c.Name},
		{"プレイヤー", c.PlayerName},
		{"種族", SpeciesName(c, t)},
		{"性別", c.Gender},
		{"年齢", string(c.Age)},
		{"出身", c.Origin},
		{"職業", c.Occupation},
		{"信仰", c.Faith},
		{"身長", c.Height},
		{"体重", c.Weight},
	}
	var lines []string
	for _, f := range fields {
		if line, ok := labelled(f.label, f.value); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

func weaknessLines(r *character.Record) []string {
	var lines []string
	for _, w := range r.Character.Weaknesses {
		if isBlank(w.Text) {
			continue
		}
		line := "・" + strings.TrimSpace(w.Text)
		if w.Acquired != "" && w.Acquired != character.AcquiredUnset {
			line += "（" + w.Acquired + "）"
		}
		lines = append(lines, line)
	}
	return lines
}

func nonBlankExperts(s character.Skill) []string {
	if !s.CanHaveExperts {
		return nil
	}
	var out []string
	for _, e := range s.Experts {
		if !isBlank(e.Value) {
			out = append(out, strings.TrimSpace(e.Value))
		}
	}
	return out
}

func skillLines(r *character.Record) []string {
	var lines []string
	for _, s := range r.Skills {
		if !s.Checked {
			continue
		}
		line := "・" + s.Name
		if experts := nonBlankExperts(s); len(experts) > 0 {
			line += "（" + strings.Join(experts, "、") + "）"
		}
		lines = append(lines, line)
	}
	return lines
}

func specialSkillLines(r *character.Record, t *ruleset.Tables) []string {
	var lines []string
	for _, s := range r.SpecialSkills {
		if isBlank(s.Name) {
			continue
		}
		line := "・" + s.Name
		if g, ok := t.SpecialSkillGroup(s.Group); ok {
			line = "・[" + g.Label + "] " + s.Name
		}
		if !isBlank(s.Note) {
			line += "：" + strings.TrimSpace(s.Note)
		}
		lines = append(lines, line)
	}
	return lines
}

// SlotName returns the display name of an equipment slot: the free-text name
// with the group label in brackets, or whichever of the two is set.
func SlotName(slot character.EquipmentSlot, groupLabel string) string {
	name := strings.TrimSpace(slot.Name)
	switch {
	case name == "":
		return groupLabel
	case groupLabel == "":
		return name
	}
	return name + "（" + groupLabel + "）"
}

func equipmentLines(r *character.Record, t *ruleset.Tables) []string {
	eq := r.Equipments
	slots := []struct {
		label string
		name  string
	}{
		{"武器1", SlotName(eq.Weapon1, t.WeaponLabel(eq.Weapon1.Group))},
		{"武器2", SlotName(eq.Weapon2, t.WeaponLabel(eq.Weapon2.Group))},
		{"防具", SlotName(eq.Armor, t.ArmorLabel(eq.Armor.Group))},
	}
	var lines []string
	for _, s := range slots {
		if line, ok := labelled(s.label, s.name); ok {
			lines = append(lines, line)
		}
	}
	if w := character.Weight(eq, t); w > 0 {
		lines = append(lines, "重量合計："+formatFloat(w))
	}
	return lines
}

// canonicalDice renders a formula in canonical notation, or as written when
// it does not parse.
func canonicalDice(formula string) string {
	expr, err := dice.Parse(formula)
	if err != nil {
		return strings.TrimSpace(formula)
	}
	return expr.String()
}

func commandLines(r *character.Record, t *ruleset.Tables) []string {
	trained := canonicalDice(t.Commands.TrainedDice)
	untrained := canonicalDice(t.Commands.UntrainedDice)
	expertDice := trained
	if expr, err := dice.Parse(t.Commands.TrainedDice); err == nil {
		expertDice = expr.WithModifier(t.Commands.ExpertModifier).String()
	}

	var lines []string
	for _, s := range r.Skills {
		roll := untrained
		if s.Checked {
			roll = trained
		}
		lines = append(lines, fmt.Sprintf("%s 〈%s〉", roll, s.Name))
	}
	for _, s := range r.Skills {
		if !s.Checked {
			continue
		}
		for _, e := range nonBlankExperts(s) {
			lines = append(lines, fmt.Sprintf("%s 〈%s：%s〉", expertDice, s.Name, e))
		}
	}
	for _, w := range []character.EquipmentSlot{r.Equipments.Weapon1, r.Equipments.Weapon2} {
		damage := t.WeaponDamage(w.Group)
		if damage == "" {
			continue
		}
		name := strings.TrimSpace(w.Name)
		if name == "" {
			name = t.WeaponLabel(w.Group)
		}
		lines = append(lines, fmt.Sprintf("%s 〈%s〉ダメージ", canonicalDice(damage), name))
	}
	return lines
}

// SkillCheck returns the chat label and dice expression of a check of skill
// id, narrowed to one of its experts when expert is non-blank. Expert checks
// require the skill to be checked and to list the expert.
func SkillCheck(r *character.Record, t *ruleset.Tables, id, expert string) (string, dice.Expression, error) {
	s := r.Skill(id)
	if s == nil {
		return "", dice.Expression{}, apperr.Wrap(apperr.CodeValidationFailure, fmt.Sprintf("skill %q", id), character.ErrUnknownSkill)
	}
	formula := t.Commands.UntrainedDice
	if s.Checked {
		formula = t.Commands.TrainedDice
	}
	expr, err := dice.Parse(formula)
	if err != nil {
		return "", dice.Expression{}, fmt.Errorf("parsing check dice: %w", err)
	}
	expert = strings.TrimSpace(expert)
	if expert == "" {
		return fmt.Sprintf("〈%s〉", s.Name), expr, nil
	}
	if s.Checked {
		for _, e := range nonBlankExperts(*s) {
			if e == expert {
				return fmt.Sprintf("〈%s：%s〉", s.Name, e), expr.WithModifier(t.Commands.ExpertModifier), nil
			}
		}
	}
	return "", dice.Expression{}, apperr.WithMetadata(apperr.CodeValidationFailure,
		fmt.Sprintf("skill %q has no expert %q", id, expert), map[string]string{"detail": expert})
}

func formatFloat(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
