package handlers

import (
	"fmt"
	"net/http"

	"github.com/cory-johannsen/aionia-sheet/internal/apperr"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
)

// opRequest is one edit of an open sheet. Op selects the edit; the other
// fields are its arguments.
type opRequest struct {
	Op string `json:"op"`

	Index   int    `json:"index"`
	Skill   string `json:"skill"`
	Checked bool   `json:"checked"`
	Linked  bool   `json:"linked"`

	Field    string        `json:"field"`
	Value    string        `json:"value"`
	Group    string        `json:"group"`
	Name     string        `json:"name"`
	Note     string        `json:"note"`
	Acquired string        `json:"acquired"`
	Slot     string        `json:"slot"`
	Key      string        `json:"key"`
	MimeType string        `json:"mimeType"`
	Data     []byte        `json:"data"`
	History  *historyInput `json:"history"`
}

type historyInput struct {
	SessionName    string        `json:"sessionName"`
	GotExperiments character.Num `json:"gotExperiments"`
	IncreasedScar  character.Num `json:"increasedScar"`
	Memo           string        `json:"memo"`
}

type opResponse struct {
	Sheet any    `json:"sheet"`
	Key   string `json:"key,omitempty"`
}

// apply runs op against rec. The returned key names an added image.
func (a *API) apply(op opRequest, rec *character.Record) (string, error) {
	t := a.Tables
	switch op.Op {
	case "setField":
		return "", rec.SetProfileField(op.Field, op.Value)
	case "setSpecies":
		return "", rec.SetSpecies(op.Value, t)
	case "setInitialScar":
		rec.SetInitialScar(character.Num(op.Value))
	case "setCurrentScar":
		rec.SetCurrentScar(character.Num(op.Value))
	case "setScarLink":
		rec.SetLinkCurrentToInitialScar(op.Linked)
	case "setWeakness":
		return "", rec.SetWeakness(op.Index, op.Value, op.Acquired)
	case "setSkillChecked":
		return "", rec.SetSkillChecked(op.Skill, op.Checked)
	case "addExpert":
		return "", rec.AddExpert(op.Skill)
	case "removeExpert":
		return "", rec.RemoveExpert(op.Skill, op.Index)
	case "setExpert":
		return "", rec.SetExpert(op.Skill, op.Index, op.Value)
	case "addSpecialSkill":
		if !rec.AddSpecialSkill(t) {
			return "", apperr.WithMetadata(apperr.CodeValidationFailure, "special skill limit reached",
				map[string]string{"detail": fmt.Sprintf("max %d", t.Config.MaxSpecialSkills)})
		}
	case "removeSpecialSkill":
		return "", rec.RemoveSpecialSkill(op.Index)
	case "setSpecialSkillGroup":
		return "", rec.SetSpecialSkillGroup(op.Index, op.Group, t)
	case "setSpecialSkillName":
		return "", rec.SetSpecialSkillName(op.Index, op.Name, t)
	case "setSpecialSkillNote":
		return "", rec.SetSpecialSkillNote(op.Index, op.Note)
	case "setEquipment":
		return "", rec.SetEquipment(op.Slot, op.Group, op.Name, t)
	case "addHistory":
		rec.AddHistory()
	case "removeHistory":
		return "", rec.RemoveHistory(op.Index)
	case "setHistory":
		if op.History == nil {
			return "", apperr.New(apperr.CodeParseFailure, "setHistory requires history")
		}
		return "", rec.SetHistory(op.Index, character.HistoryEntry{
			SessionName:    op.History.SessionName,
			GotExperiments: op.History.GotExperiments,
			IncreasedScar:  op.History.IncreasedScar,
			Memo:           op.History.Memo,
		})
	case "addImage":
		if len(op.Data) == 0 {
			return "", apperr.New(apperr.CodeParseFailure, "addImage requires data")
		}
		mimeType := op.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(op.Data)
		}
		return rec.AddImage(character.Image{Key: op.Key, Name: op.Name, MimeType: mimeType, Data: op.Data}, t)
	case "removeImage":
		return "", rec.RemoveImage(op.Key)
	default:
		return "", apperr.WithMetadata(apperr.CodeValidationFailure, fmt.Sprintf("unknown op %q", op.Op),
			map[string]string{"detail": op.Op})
	}
	return "", nil
}

func (a *API) handleOp(w http.ResponseWriter, r *http.Request) {
	var op opRequest
	if err := a.decodeBody(w, r, &op); err != nil {
		a.writeError(w, r, err)
		return
	}
	var key string
	snap, err := a.Sessions.Mutate(r.PathValue("id"), func(rec *character.Record) error {
		k, err := a.apply(op, rec)
		key = k
		return err
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opResponse{Sheet: snap, Key: key})
}
