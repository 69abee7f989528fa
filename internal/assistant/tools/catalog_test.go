package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Same(t, c, Default())

	write, ok := c.Lookup(ToolWrite)
	require.True(t, ok)
	assert.True(t, write.AutoApplyOnSuccess)
	assert.Equal(t, model.VariantLyrics, write.Output)

	tags, ok := c.Lookup(ToolTags)
	require.True(t, ok)
	assert.True(t, tags.DirectApply)
	assert.False(t, tags.AutoApplyOnSuccess)

	_, ok = c.Lookup("does-not-exist")
	assert.False(t, ok)

	ids := c.IDs()
	assert.IsNonDecreasing(t, ids)
	assert.Len(t, ids, len(builtin))
}

func TestOnlyWriteAutoApplies(t *testing.T) {
	c := Default()
	for _, id := range c.IDs() {
		d, _ := c.Lookup(id)
		assert.Equal(t, id == ToolWrite, d.AutoApplyOnSuccess, id)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	c := Default()
	d, _ := c.Lookup(ToolWrite)
	d.AutoApplyOnSuccess = false
	d.Params["theme"] = "mutated"

	again, _ := c.Lookup(ToolWrite)
	assert.True(t, again.AutoApplyOnSuccess)
	assert.Equal(t, "What the song is about", again.Params["theme"])
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	_, err := NewCatalog(model.ToolDescriptor{ID: "x", Label: "X"})
	assert.Error(t, err)

	d := model.ToolDescriptor{ID: "x", Label: "X", Action: "x", Output: model.VariantPlainText}
	_, err = NewCatalog(d, d)
	assert.ErrorContains(t, err, "registered twice")
}

func TestToolInfos(t *testing.T) {
	c := Default()
	infos := c.ToolInfos()
	require.Len(t, infos, len(c.IDs()))

	byName := map[string]string{}
	for _, info := range infos {
		byName[info.Name] = info.Desc
	}
	assert.Contains(t, byName["write"], `"lyrics"`)
	assert.Contains(t, byName["generate_tags"], `"tags"`)
	assert.Contains(t, byName["analyze"], `"overallScore"`)
}
