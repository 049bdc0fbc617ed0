package export_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/aionia-sheet/internal/export"
	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

func commandSet(e export.Export) map[string]bool {
	set := map[string]bool{}
	for _, line := range strings.Split(e.Commands, "\n") {
		set[line] = true
	}
	return set
}

func TestCocofolia_SkillCommandsFollowCheckedState(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)

	cmds := commandSet(export.Cocofolia(r, tables))
	assert.True(t, cmds["1D10 〈運動〉"])

	require.NoError(t, r.SetSkillChecked("athletics", true))
	cmds = commandSet(export.Cocofolia(r, tables))
	assert.True(t, cmds["2D10 〈運動〉"])
	assert.False(t, cmds["1D10 〈運動〉"])
}

func TestCocofolia_ExpertAndWeaponCommands(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	require.NoError(t, r.SetSkillChecked("knowledge", true))
	require.NoError(t, r.SetExpert("knowledge", 0, "歴史"))
	require.NoError(t, r.AddExpert("knowledge"))
	require.NoError(t, r.SetSkillChecked("arcana", true))
	require.NoError(t, r.SetExpert("arcana", 0, "死霊術"))
	require.NoError(t, r.SetSkillChecked("arcana", false))
	r.Equipments.Weapon1 = character.EquipmentSlot{Group: "spear", Name: "名槍"}
	r.Equipments.Weapon2 = character.EquipmentSlot{Group: "sword"}
	r.Equipments.Armor = character.EquipmentSlot{Group: "chain"}

	e := export.Cocofolia(r, tables)
	lines := strings.Split(e.Commands, "\n")
	assert.Len(t, lines, len(tables.Skills)+1+2)

	cmds := commandSet(e)
	assert.True(t, cmds["2D10 〈知識：歴史〉"])
	assert.False(t, cmds["2D10 〈魔術：死霊術〉"], "experts of unchecked skills are not exported")
	assert.True(t, cmds["2D10+1 〈名槍〉ダメージ"])
	assert.True(t, cmds["2D10 〈長剣〉ダメージ"])
}

func TestCocofolia_MemoSections(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)

	assert.Equal(t, "", export.Cocofolia(r, tables).Memo, "blank sheet has no sections")

	r.Character.Name = "リラ"
	require.NoError(t, r.SetSpecies(ruleset.SpeciesOther, tables))
	r.Character.RareSpecies = "竜人"
	require.NoError(t, r.SetWeakness(0, "高所恐怖症", character.AcquiredAtCreation))
	require.NoError(t, r.SetSkillChecked("stealth", true))
	r.AddSpecialSkill(tables)
	require.NoError(t, r.SetSpecialSkillGroup(0, "magic", tables))
	require.NoError(t, r.SetSpecialSkillName(0, "元素魔法", tables))
	require.NoError(t, r.SetSpecialSkillNote(0, "炎"))
	r.Character.Memo = "森で育った。"

	memo := export.Cocofolia(r, tables).Memo
	assert.Contains(t, memo, "【基本情報】\n名前：リラ\n種族：竜人")
	assert.Contains(t, memo, "【弱点】\n・高所恐怖症（作成時）")
	assert.Contains(t, memo, "【技能】\n・隠密")
	assert.Contains(t, memo, "【特技】\n・[魔法] 元素魔法：炎")
	assert.Contains(t, memo, "【メモ】\n森で育った。")
	assert.NotContains(t, memo, "【装備】")
	assert.NotContains(t, memo, "【所持品】")
}

func TestCocofolia_MemoIsTruncated(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Memo = strings.Repeat("あ", tables.Config.MemoMaxLength+10)

	memo := export.Cocofolia(r, tables).Memo
	assert.True(t, strings.HasSuffix(memo, export.Ellipsis))
}

func TestExport_Text(t *testing.T) {
	assert.Equal(t, "m\n\nc", export.Export{Memo: "m", Commands: "c"}.Text())
	assert.Equal(t, "c", export.Export{Commands: "c"}.Text())
	assert.Equal(t, "m", export.Export{Memo: "m"}.Text())
}

func TestExport_ClipboardJSON(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Name = "リラ"
	r.SetInitialScar("4")

	e := export.Cocofolia(r, tables)
	b, err := e.ClipboardJSON(r, character.Derive(r, tables), "https://example.test/?sharedId=abc")
	require.NoError(t, err)

	var piece struct {
		Kind string `json:"kind"`
		Data struct {
			Name        string `json:"name"`
			ExternalURL string `json:"externalUrl"`
			Commands    string `json:"commands"`
			Status      []struct {
				Label string  `json:"label"`
				Value float64 `json:"value"`
				Max   float64 `json:"max"`
			} `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &piece))
	assert.Equal(t, "character", piece.Kind)
	assert.Equal(t, "リラ", piece.Data.Name)
	assert.Equal(t, "https://example.test/?sharedId=abc", piece.Data.ExternalURL)
	assert.Equal(t, e.Commands, piece.Data.Commands)
	require.Len(t, piece.Data.Status, 1)
	assert.Equal(t, "傷痕", piece.Data.Status[0].Label)
	assert.Equal(t, 4.0, piece.Data.Status[0].Value)
	assert.Equal(t, 4.0, piece.Data.Status[0].Max)
}

func TestDefaultPrinter_FillsAndEscapes(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Name = `<script>alert("x")</script>`
	r.Character.Memo = "一行目\n二行目"
	r.Equipments.Armor = character.EquipmentSlot{Group: "plate"}

	out := export.DefaultPrinter().Render(r, tables)
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "一行目<br>二行目")
	assert.Contains(t, out, "板金鎧")
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "<img")
}

func TestDefaultPrinter_Portrait(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	_, err := r.AddImage(character.Image{MimeType: "image/png", Data: []byte{1, 2, 3}}, tables)
	require.NoError(t, err)

	out := export.DefaultPrinter().Render(r, tables)
	assert.Contains(t, out, `src="data:image/png;base64,AQID"`)
}

func TestPrinter_RemovesUnknownPlaceholders(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Name = "リラ"

	p := export.NewPrinter("<p>{{name}}</p><p>{{ unknown }}</p><p>{{gender}}</p>")
	assert.Equal(t, "<p>リラ</p><p></p><p></p>", p.Render(r, tables))
}

func TestPrinter_KeepsBracesInUserText(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Name = "{{memo}}"
	r.Character.Memo = "{{name}} と {{ unknown }}"

	p := export.NewPrinter("<p>{{ name }}</p><p>{{memo}}</p>")
	assert.Equal(t, "<p>{{memo}}</p><p>{{name}} と {{ unknown }}</p>", p.Render(r, tables))
}

func TestLoadPrinter(t *testing.T) {
	p, err := export.LoadPrinter("")
	require.NoError(t, err)
	assert.NotNil(t, p)

	path := filepath.Join(t.TempDir(), "sheet.html")
	require.NoError(t, os.WriteFile(path, []byte("[{{name}}]"), 0644))
	p, err = export.LoadPrinter(path)
	require.NoError(t, err)
	tables := ruleset.Default()
	r := character.New(tables)
	r.Character.Name = "x"
	assert.Equal(t, "[x]", p.Render(r, tables))

	_, err = export.LoadPrinter(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestProperty_PrintLeavesNoPlaceholders(t *testing.T) {
	tables := ruleset.Default()
	rapid.Check(t, func(rt *rapid.T) {
		r := character.New(tables)
		noBraces := rapid.String().Filter(func(s string) bool { return !strings.Contains(s, "{") })
		r.Character.Name = noBraces.Draw(rt, "name")
		r.Character.Memo = noBraces.Draw(rt, "memo")
		out := export.DefaultPrinter().Render(r, tables)
		if strings.Contains(out, "{{name}}") || strings.Contains(out, "{{memo}}") || strings.Contains(out, "{{portrait}}") {
			rt.Fatalf("placeholder left in output")
		}
	})
}

func TestSkillCheck(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)

	label, expr, err := export.SkillCheck(r, tables, "athletics", "")
	require.NoError(t, err)
	assert.Equal(t, "〈運動〉", label)
	assert.Equal(t, "1D10", expr.String())

	require.NoError(t, r.SetSkillChecked("knowledge", true))
	require.NoError(t, r.SetExpert("knowledge", 0, "歴史"))
	label, expr, err = export.SkillCheck(r, tables, "knowledge", "歴史")
	require.NoError(t, err)
	assert.Equal(t, "〈知識：歴史〉", label)
	assert.Equal(t, "2D10", expr.String())

	_, _, err = export.SkillCheck(r, tables, "knowledge", "地理")
	assert.Error(t, err)
	_, _, err = export.SkillCheck(r, tables, "cooking", "")
	assert.ErrorIs(t, err, character.ErrUnknownSkill)
}
