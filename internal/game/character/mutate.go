package character

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

// Mutation errors. Each is returned wrapped in an apperr validation failure.
var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrUnknownSkill      = errors.New("unknown skill")
	ErrExpertsNotAllowed = errors.New("skill cannot have experts")
	ErrUnknownGroup      = errors.New("unknown special skill group")
	ErrUnknownOption     = errors.New("special skill not in group")
	ErrUnknownSpecies    = errors.New("unknown species")
	ErrTooManyImages     = errors.New("too many images")
	ErrImageExists       = errors.New("image key already used")
	ErrUnknownField      = errors.New("unknown profile field")
	ErrUnknownSlot       = errors.New("unknown equipment slot")
	ErrUnknownEquipment  = errors.New("unknown equipment group")
	ErrImageType         = errors.New("unsupported image type")
)

// Equipment slot names.
const (
	SlotWeapon1 = "weapon1"
	SlotWeapon2 = "weapon2"
	SlotArmor   = "armor"
)

func invalid(cause error, format string, args ...any) error {
	return apperr.Wrap(apperr.CodeValidationFailure, fmt.Sprintf(format, args...), cause)
}

// AddSpecialSkill appends a blank special skill.
//
// Postcondition: Returns false and leaves the list unchanged when it already
// holds t.Config.MaxSpecialSkills entries.
func (r *Record) AddSpecialSkill(t *ruleset.Tables) bool {
	if len(r.SpecialSkills) >= t.Config.MaxSpecialSkills {
		return false
	}
	r.SpecialSkills = append(r.SpecialSkills, SpecialSkill{})
	return true
}

// RemoveSpecialSkill deletes the special skill at index i.
func (r *Record) RemoveSpecialSkill(i int) error {
	if i < 0 || i >= len(r.SpecialSkills) {
		return invalid(ErrIndexOutOfRange, "special skill %d", i)
	}
	r.SpecialSkills = append(r.SpecialSkills[:i], r.SpecialSkills[i+1:]...)
	return nil
}

// SetSpecialSkillGroup changes the group of special skill i. A changed group
// clears the chosen name and recomputes ShowNote.
//
// Precondition: group is "" or a group id of t.
func (r *Record) SetSpecialSkillGroup(i int, group string, t *ruleset.Tables) error {
	if i < 0 || i >= len(r.SpecialSkills) {
		return invalid(ErrIndexOutOfRange, "special skill %d", i)
	}
	if group != "" {
		if _, ok := t.SpecialSkillGroup(group); !ok {
			return invalid(ErrUnknownGroup, "group %q", group)
		}
	}
	s := &r.SpecialSkills[i]
	if s.Group == group {
		return nil
	}
	s.Group = group
	s.Name = ""
	s.ShowNote = t.RequiresNote(s.Name)
	return nil
}

// SetSpecialSkillName chooses special skill name within the current group and
// recomputes ShowNote.
//
// Precondition: name is "" or an option of the skill's group.
func (r *Record) SetSpecialSkillName(i int, name string, t *ruleset.Tables) error {
	if i < 0 || i >= len(r.SpecialSkills) {
		return invalid(ErrIndexOutOfRange, "special skill %d", i)
	}
	s := &r.SpecialSkills[i]
	if name != "" {
		g, ok := t.SpecialSkillGroup(s.Group)
		if !ok {
			return invalid(ErrUnknownGroup, "special skill %d has no group", i)
		}
		if !g.HasOption(name) {
			return invalid(ErrUnknownOption, "%q in group %q", name, s.Group)
		}
	}
	s.Name = name
	s.ShowNote = t.RequiresNote(name)
	return nil
}

// SetSpecialSkillNote sets the free-text note of special skill i.
func (r *Record) SetSpecialSkillNote(i int, note string) error {
	if i < 0 || i >= len(r.SpecialSkills) {
		return invalid(ErrIndexOutOfRange, "special skill %d", i)
	}
	r.SpecialSkills[i].Note = note
	return nil
}

// SetSkillChecked marks a skill as invested or not. Checking a skill that
// can have experts and has none seeds one blank expert slot.
func (r *Record) SetSkillChecked(id string, checked bool) error {
	s := r.Skill(id)
	if s == nil {
		return invalid(ErrUnknownSkill, "skill %q", id)
	}
	s.Checked = checked
	if checked && s.CanHaveExperts && len(s.Experts) == 0 {
		s.Experts = append(s.Experts, Expert{})
	}
	return nil
}

// AddExpert appends a blank expert slot to the skill.
func (r *Record) AddExpert(id string) error {
	s := r.Skill(id)
	if s == nil {
		return invalid(ErrUnknownSkill, "skill %q", id)
	}
	if !s.CanHaveExperts {
		return invalid(ErrExpertsNotAllowed, "skill %q", id)
	}
	s.Experts = append(s.Experts, Expert{})
	return nil
}

// RemoveExpert removes the expert at index from the skill. The sole
// remaining expert is cleared instead of removed, so a skill that has had
// experts always keeps at least one slot.
func (r *Record) RemoveExpert(id string, index int) error {
	s := r.Skill(id)
	if s == nil {
		return invalid(ErrUnknownSkill, "skill %q", id)
	}
	if index < 0 || index >= len(s.Experts) {
		return invalid(ErrIndexOutOfRange, "expert %d of skill %q", index, id)
	}
	if len(s.Experts) == 1 {
		s.Experts[0].Value = ""
		return nil
	}
	s.Experts = append(s.Experts[:index], s.Experts[index+1:]...)
	return nil
}

// SetExpert sets the value of the expert at index.
func (r *Record) SetExpert(id string, index int, value string) error {
	s := r.Skill(id)
	if s == nil {
		return invalid(ErrUnknownSkill, "skill %q", id)
	}
	if index < 0 || index >= len(s.Experts) {
		return invalid(ErrIndexOutOfRange, "expert %d of skill %q", index, id)
	}
	s.Experts[index].Value = value
	return nil
}

// AddHistory appends a blank adventure-log entry.
func (r *Record) AddHistory() {
	r.Histories = append(r.Histories, HistoryEntry{})
}

// RemoveHistory deletes the adventure-log entry at index i.
func (r *Record) RemoveHistory(i int) error {
	if i < 0 || i >= len(r.Histories) {
		return invalid(ErrIndexOutOfRange, "history %d", i)
	}
	r.Histories = append(r.Histories[:i], r.Histories[i+1:]...)
	return nil
}

// SetHistory replaces the adventure-log entry at index i.
func (r *Record) SetHistory(i int, h HistoryEntry) error {
	if i < 0 || i >= len(r.Histories) {
		return invalid(ErrIndexOutOfRange, "history %d", i)
	}
	r.Histories[i] = h
	return nil
}

// SetProfileField sets one free-text profile field by its JSON name. Species,
// scars, weaknesses, and images have dedicated setters.
func (r *Record) SetProfileField(field, value string) error {
	c := &r.Character
	switch field {
	case "name":
		c.Name = value
	case "playerName":
		c.PlayerName = value
	case "rareSpecies":
		c.RareSpecies = value
	case "gender":
		c.Gender = value
	case "age":
		c.Age = Num(value)
	case "origin":
		c.Origin = value
	case "occupation":
		c.Occupation = value
	case "faith":
		c.Faith = value
	case "height":
		c.Height = value
	case "weight":
		c.Weight = value
	case "otherItems":
		c.OtherItems = value
	case "memo":
		c.Memo = value
	default:
		return invalid(ErrUnknownField, "field %q", field)
	}
	return nil
}

// SetEquipment fills an equipment slot. group is "" or a weapon group for
// the weapon slots and an armor group for the armor slot.
func (r *Record) SetEquipment(slot, group, name string, t *ruleset.Tables) error {
	var target *EquipmentSlot
	label := t.WeaponLabel
	switch slot {
	case SlotWeapon1:
		target = &r.Equipments.Weapon1
	case SlotWeapon2:
		target = &r.Equipments.Weapon2
	case SlotArmor:
		target = &r.Equipments.Armor
		label = t.ArmorLabel
	default:
		return invalid(ErrUnknownSlot, "slot %q", slot)
	}
	if group != "" && label(group) == "" {
		return invalid(ErrUnknownEquipment, "%s group %q", slot, group)
	}
	*target = EquipmentSlot{Group: group, Name: name}
	return nil
}

// SetSpecies changes the species. Leaving the "other" sentinel clears the
// free-text rare species.
func (r *Record) SetSpecies(id string, t *ruleset.Tables) error {
	if id != "" && t.SpeciesLabel(id) == "" {
		return invalid(ErrUnknownSpecies, "species %q", id)
	}
	r.Character.Species = id
	if id != ruleset.SpeciesOther {
		r.Character.RareSpecies = ""
	}
	return nil
}

// SetInitialScar sets the initial scar, mirroring it into the current scar
// while the two are linked.
func (r *Record) SetInitialScar(v Num) {
	r.Character.InitialScar = v
	if r.Character.LinkCurrentToInitialScar {
		r.Character.CurrentScar = v
	}
}

// SetCurrentScar sets the current scar. A value different from the initial
// scar breaks the link; an equal value never re-establishes it.
func (r *Record) SetCurrentScar(v Num) {
	r.Character.CurrentScar = v
	if v.Float() != r.Character.InitialScar.Float() {
		r.Character.LinkCurrentToInitialScar = false
	}
}

// SetLinkCurrentToInitialScar sets the link flag; linking copies the initial
// scar into the current scar.
func (r *Record) SetLinkCurrentToInitialScar(linked bool) {
	r.Character.LinkCurrentToInitialScar = linked
	if linked {
		r.Character.CurrentScar = r.Character.InitialScar
	}
}

// SetWeakness fills weakness slot i.
func (r *Record) SetWeakness(i int, text, acquired string) error {
	if i < 0 || i >= len(r.Character.Weaknesses) {
		return invalid(ErrIndexOutOfRange, "weakness %d", i)
	}
	if acquired == "" {
		acquired = AcquiredUnset
	}
	r.Character.Weaknesses[i] = WeaknessSlot{Text: text, Acquired: acquired}
	return nil
}

// AddImage attaches an image. When img.Key is empty a free "image_<n>" key
// is assigned.
//
// Postcondition: Returns the stored key, or an error when the image limit is
// reached, the key is taken, or the type is not a raster image type.
func (r *Record) AddImage(img Image, t *ruleset.Tables) (string, error) {
	if len(r.Character.Images) >= t.Config.MaxImages {
		return "", invalid(ErrTooManyImages, "limit %d", t.Config.MaxImages)
	}
	if !IsImageType(img.MimeType) {
		return "", invalid(ErrImageType, "%q", img.MimeType)
	}
	if img.Key == "" {
		for n := 0; ; n++ {
			key := "image_" + strconv.Itoa(n)
			if r.imageIndex(key) < 0 {
				img.Key = key
				break
			}
		}
	} else if r.imageIndex(img.Key) >= 0 {
		return "", invalid(ErrImageExists, "image %q", img.Key)
	}
	r.Character.Images = append(r.Character.Images, img)
	return img.Key, nil
}

// RemoveImage detaches the image with the given key.
func (r *Record) RemoveImage(key string) error {
	i := r.imageIndex(key)
	if i < 0 {
		return apperr.Wrap(apperr.CodeNotFound, fmt.Sprintf("image %q", key), ErrIndexOutOfRange)
	}
	r.Character.Images = append(r.Character.Images[:i], r.Character.Images[i+1:]...)
	return nil
}

// Image returns the image with the given key.
func (r *Record) Image(key string) (Image, bool) {
	if i := r.imageIndex(key); i >= 0 {
		return r.Character.Images[i], true
	}
	return Image{}, false
}

func (r *Record) imageIndex(key string) int {
	for i, img := range r.Character.Images {
		if img.Key == key {
			return i
		}
	}
	return -1
}
