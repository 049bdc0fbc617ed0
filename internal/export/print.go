package export

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

//go:embed data/print.html
var defaultPrintTemplate string

var placeholderRe = regexp.MustCompile(`\{\{\s*[A-Za-z0-9_]+\s*\}\}`)

// Printer fills a fixed-field HTML template. Placeholders are written as
// {{field}}; values are HTML-escaped and any placeholder without a value is
// removed.
type Printer struct {
	template string
}

// NewPrinter creates a Printer over the given template text.
func NewPrinter(template string) *Printer {
	return &Printer{template: template}
}

// DefaultPrinter returns a Printer over the embedded A4 sheet template.
func DefaultPrinter() *Printer {
	return NewPrinter(defaultPrintTemplate)
}

// LoadPrinter reads a template file. An empty path selects the embedded
// template.
func LoadPrinter(path string) (*Printer, error) {
	if path == "" {
		return DefaultPrinter(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading print template %s: %w", path, err)
	}
	return NewPrinter(string(b)), nil
}

// Render fills the template from r and its derived values. Only the template
// is scanned for placeholders; filled-in values are never rescanned.
//
// Postcondition: No placeholder of the template survives in the result.
func (p *Printer) Render(r *character.Record, t *ruleset.Tables) string {
	fields := Fields(r, t)
	return placeholderRe.ReplaceAllStringFunc(p.template, func(m string) string {
		return fields[strings.TrimSpace(m[2:len(m)-2])]
	})
}

// text escapes a free-text value and keeps its line breaks.
func text(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

func list(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, it := range items {
		b.WriteString("<li>")
		b.WriteString(it)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// Fields returns the escaped HTML value of every print placeholder. Empty
// values are omitted.
func Fields(r *character.Record, t *ruleset.Tables) map[string]string {
	c := r.Character
	d := character.Derive(r, t)
	eq := r.Equipments

	fields := map[string]string{
		"name":                text(c.Name),
		"playerName":          text(c.PlayerName),
		"species":             text(SpeciesName(c, t)),
		"gender":              text(c.Gender),
		"age":                 text(string(c.Age)),
		"origin":              text(c.Origin),
		"occupation":          text(c.Occupation),
		"faith":               text(c.Faith),
		"height":              text(c.Height),
		"weight":              text(c.Weight),
		"initialScar":         text(string(c.InitialScar)),
		"currentScar":         text(string(c.CurrentScar)),
		"scar":                formatFloat(d.Scar),
		"carryWeight":         formatFloat(d.Weight),
		"maxExperience":       fmt.Sprint(d.MaxExperience),
		"currentExperience":   fmt.Sprint(d.CurrentExperience),
		"remainingExperience": fmt.Sprint(d.RemainingExperience),
		"weapon1":             text(SlotName(eq.Weapon1, t.WeaponLabel(eq.Weapon1.Group))),
		"weapon2":             text(SlotName(eq.Weapon2, t.WeaponLabel(eq.Weapon2.Group))),
		"armor":               text(SlotName(eq.Armor, t.ArmorLabel(eq.Armor.Group))),
		"otherItems":          text(c.OtherItems),
		"memo":                text(c.Memo),
	}

	var weaknesses []string
	for _, w := range c.Weaknesses {
		if isBlank(w.Text) {
			continue
		}
		item := text(w.Text)
		if w.Acquired != "" && w.Acquired != character.AcquiredUnset {
			item += "（" + html.EscapeString(w.Acquired) + "）"
		}
		weaknesses = append(weaknesses, item)
	}
	fields["weaknesses"] = list(weaknesses)

	var skills []string
	for _, s := range r.Skills {
		if !s.Checked {
			continue
		}
		item := html.EscapeString(s.Name)
		if experts := nonBlankExperts(s); len(experts) > 0 {
			item += "（" + html.EscapeString(strings.Join(experts, "、")) + "）"
		}
		skills = append(skills, item)
	}
	fields["skills"] = list(skills)

	var specials []string
	for _, line := range specialSkillLines(r, t) {
		specials = append(specials, html.EscapeString(strings.TrimPrefix(line, "・")))
	}
	fields["specialSkills"] = list(specials)

	var histories []string
	for _, h := range r.Histories {
		if isBlank(h.SessionName) && h.GotExperiments.IsNull() && h.IncreasedScar.IsNull() && isBlank(h.Memo) {
			continue
		}
		item := html.EscapeString(strings.TrimSpace(h.SessionName))
		if !h.GotExperiments.IsNull() {
			item += " 経験点+" + html.EscapeString(string(h.GotExperiments))
		}
		if !h.IncreasedScar.IsNull() {
			item += " 傷痕+" + html.EscapeString(string(h.IncreasedScar))
		}
		if !isBlank(h.Memo) {
			item += "<br>" + text(h.Memo)
		}
		histories = append(histories, item)
	}
	fields["histories"] = list(histories)

	for _, img := range c.Images {
		if len(img.Data) == 0 || !strings.HasPrefix(img.MimeType, "image/") {
			continue
		}
		fields["portrait"] = fmt.Sprintf(`<img class="portrait" alt="" src="data:%s;base64,%s">`,
			html.EscapeString(img.MimeType), base64.StdEncoding.EncodeToString(img.Data))
		break
	}

	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}
