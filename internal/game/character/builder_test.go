package character_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/aionia-sheet/internal/game/character"
	"github.com/cory-johannsen/aionia-sheet/internal/game/ruleset"
)

func TestNew_Defaults(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)

	require.Len(t, r.Character.Weaknesses, tables.Config.MaxWeaknesses)
	for _, w := range r.Character.Weaknesses {
		assert.Equal(t, "", w.Text)
		assert.Equal(t, character.AcquiredUnset, w.Acquired)
	}
	require.Len(t, r.Skills, len(tables.Skills))
	for i, def := range tables.Skills {
		assert.Equal(t, def.ID, r.Skills[i].ID)
		assert.Equal(t, def.Name, r.Skills[i].Name)
		assert.Equal(t, def.CanHaveExperts, r.Skills[i].CanHaveExperts)
		assert.False(t, r.Skills[i].Checked)
		assert.NotNil(t, r.Skills[i].Experts)
	}
	assert.True(t, r.Character.LinkCurrentToInitialScar)
	assert.Equal(t, character.NumOf(0), r.Character.InitialScar)
	assert.Equal(t, character.NumOf(0), r.Character.CurrentScar)
	assert.Empty(t, r.SpecialSkills)
	assert.Empty(t, r.Histories)
	assert.NotNil(t, r.Character.Images)
	assert.NoError(t, r.Validate(tables))
}

func TestNormalize_FillsMissingPieces(t *testing.T) {
	tables := ruleset.Default()
	r := &character.Record{
		Skills: []character.Skill{
			{ID: "knowledge", Name: "old name", Checked: true},
		},
		SpecialSkills: []character.SpecialSkill{{Group: "magic", Name: "元素魔法"}},
		Character: character.Character{
			Weaknesses: []character.WeaknessSlot{{Text: "高所恐怖症"}},
		},
	}
	r.Normalize(tables)

	require.Len(t, r.Skills, len(tables.Skills))
	k := r.Skill("knowledge")
	require.NotNil(t, k)
	assert.Equal(t, "知識", k.Name)
	assert.True(t, k.CanHaveExperts)
	assert.True(t, k.Checked)
	assert.Equal(t, "knowledge", r.Skills[0].ID, "existing skills keep their position")

	require.Len(t, r.Character.Weaknesses, tables.Config.MaxWeaknesses)
	assert.Equal(t, "高所恐怖症", r.Character.Weaknesses[0].Text)
	assert.Equal(t, character.AcquiredUnset, r.Character.Weaknesses[0].Acquired)

	assert.True(t, r.SpecialSkills[0].ShowNote)
	assert.NotNil(t, r.Histories)
	assert.NotNil(t, r.Character.Images)
}

func TestNormalize_Idempotent(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	require.NoError(t, r.SetSkillChecked("arcana", true))
	r.AddSpecialSkill(tables)
	require.NoError(t, r.SetSpecialSkillGroup(0, "scholarship", tables))
	require.NoError(t, r.SetSpecialSkillName(0, "言語", tables))

	once := r.Clone()
	once.Normalize(tables)
	twice := once.Clone()
	twice.Normalize(tables)
	assert.Equal(t, once, twice)
}

func TestClone_IsIndependent(t *testing.T) {
	tables := ruleset.Default()
	r := character.New(tables)
	require.NoError(t, r.SetSkillChecked("knowledge", true))
	r.AddHistory()

	c := r.Clone()
	require.NoError(t, c.SetExpert("knowledge", 0, "歴史"))
	c.Histories[0].SessionName = "第1話"
	c.Character.Weaknesses[0].Text = "臆病"

	assert.Equal(t, "", r.Skill("knowledge").Experts[0].Value)
	assert.Equal(t, "", r.Histories[0].SessionName)
	assert.Equal(t, "", r.Character.Weaknesses[0].Text)
}
