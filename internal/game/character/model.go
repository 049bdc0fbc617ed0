// Package character defines the character sheet record, its mutation rules,
// and the derived values computed from it.
package character

// Weakness acquisition markers.
const (
	// AcquiredUnset marks a weakness slot whose acquisition is not recorded.
	AcquiredUnset = "--"
	// AcquiredAtCreation marks a weakness taken at character creation.
	AcquiredAtCreation = "作成時"
)

// WeaknessSlot is one fixed, index-addressable weakness entry. A slot with
// blank Text is ignored by every calculation and exporter.
type WeaknessSlot struct {
	Text string `json:"text"`
	// Acquired is AcquiredUnset, AcquiredAtCreation, or a session name.
	Acquired string `json:"acquired"`
}

// Image is a character portrait reference. Data travels outside the JSON
// manifest and is treated as immutable once attached.
type Image struct {
	Key      string `json:"key"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// imageTypes are the content types an Image may carry. SVG is excluded
// because it can embed script.
var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/avif": true,
}

// IsImageType reports whether mimeType may be stored on an Image.
func IsImageType(mimeType string) bool {
	return imageTypes[mimeType]
}

// Character holds the profile fields of a sheet.
type Character struct {
	Name        string `json:"name"`
	PlayerName  string `json:"playerName"`
	Species     string `json:"species"`
	RareSpecies string `json:"rareSpecies"`
	Gender      string `json:"gender"`
	Age         Num    `json:"age"`
	Origin      string `json:"origin"`
	Occupation  string `json:"occupation"`
	Faith       string `json:"faith"`
	Height      string `json:"height"`
	Weight      string `json:"weight"`

	InitialScar Num `json:"initialScar"`
	CurrentScar Num `json:"currentScar"`
	// LinkCurrentToInitialScar makes CurrentScar mirror every InitialScar change.
	LinkCurrentToInitialScar bool `json:"linkCurrentToInitialScar"`

	OtherItems string         `json:"otherItems"`
	Memo       string         `json:"memo"`
	Weaknesses []WeaknessSlot `json:"weaknesses"`
	Images     []Image        `json:"images"`
}

// Expert is a sub-specialization of a skill. Blank values are placeholders.
type Expert struct {
	Value string `json:"value"`
}

// Skill is one entry of the baseline skill list.
type Skill struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Checked        bool     `json:"checked"`
	CanHaveExperts bool     `json:"canHaveExperts"`
	Experts        []Expert `json:"experts"`
}

// SpecialSkill is a chosen special skill. ShowNote is derived from the rule
// tables whenever Group or Name changes.
type SpecialSkill struct {
	Group    string `json:"group"`
	Name     string `json:"name"`
	Note     string `json:"note"`
	ShowNote bool   `json:"showNote"`
}

// EquipmentSlot is one equipped item: a rule-table group and a free-text name.
type EquipmentSlot struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// IsEmpty reports whether the slot has neither group nor name.
func (s EquipmentSlot) IsEmpty() bool {
	return s.Group == "" && s.Name == ""
}

// Equipments is the fixed weapon/weapon/armor triple.
type Equipments struct {
	Weapon1 EquipmentSlot `json:"weapon1"`
	Weapon2 EquipmentSlot `json:"weapon2"`
	Armor   EquipmentSlot `json:"armor"`
}

// HistoryEntry is one adventure-log line.
type HistoryEntry struct {
	SessionName    string `json:"sessionName"`
	GotExperiments Num    `json:"gotExperiments"`
	Memo           string `json:"memo"`
	IncreasedScar  Num    `json:"increasedScar"`
}

// Record is the full in-memory character sheet.
type Record struct {
	Character     Character      `json:"character"`
	Skills        []Skill        `json:"skills"`
	SpecialSkills []SpecialSkill `json:"specialSkills"`
	Equipments    Equipments     `json:"equipments"`
	Histories     []HistoryEntry `json:"histories"`
}

// Clone returns a deep copy of r. Image data is shared, not copied.
func (r *Record) Clone() *Record {
	out := *r
	out.Character.Weaknesses = cloneSlice(r.Character.Weaknesses)
	out.Character.Images = cloneSlice(r.Character.Images)
	out.Skills = cloneSlice(r.Skills)
	for i := range out.Skills {
		out.Skills[i].Experts = cloneSlice(r.Skills[i].Experts)
	}
	out.SpecialSkills = cloneSlice(r.SpecialSkills)
	out.Histories = cloneSlice(r.Histories)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Skill returns a pointer to the skill with the given id, or nil.
func (r *Record) Skill(id string) *Skill {
	for i := range r.Skills {
		if r.Skills[i].ID == id {
			return &r.Skills[i]
		}
	}
	return nil
}
