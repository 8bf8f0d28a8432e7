package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplate(name string) types.Template {
	return types.Template{ID: uuid.New(), Name: name, Content: "\\documentclass{article}", SizeBytes: 22}
}

func completeProvider() types.ProviderConfig {
	return types.ProviderConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test-1234"}
}

func TestDocument_SetProvider(t *testing.T) {
	t.Run("rejects partial config and keeps the old one", func(t *testing.T) {
		doc := New()
		require.NoError(t, doc.SetProvider(completeProvider()))

		err := doc.SetProvider(types.ProviderConfig{Provider: types.ProviderAnthropic, Model: "claude"})
		assert.ErrorIs(t, err, ErrIncompleteProvider)
		assert.Equal(t, types.ProviderOpenAI, doc.Provider.Provider)
		assert.Equal(t, "sk-test-1234", doc.Provider.APIKey)
	})

	t.Run("disconnect clears every field", func(t *testing.T) {
		doc := New()
		require.NoError(t, doc.SetProvider(completeProvider()))
		assert.True(t, doc.ProviderReady())

		doc.DisconnectProvider()
		assert.Nil(t, doc.Provider)
		assert.False(t, doc.ProviderReady())
	})
}

func TestDocument_Templates(t *testing.T) {
	t.Run("first upload becomes selected", func(t *testing.T) {
		doc := New()
		a := newTemplate("a.tex")
		require.NoError(t, doc.AddTemplate(a, 5))
		require.NoError(t, doc.AddTemplate(newTemplate("b.tex"), 5))

		sel, ok := doc.SelectedTemplate()
		require.True(t, ok)
		assert.Equal(t, a.ID, sel.ID)
	})

	t.Run("limit", func(t *testing.T) {
		doc := New()
		require.NoError(t, doc.AddTemplate(newTemplate("a.tex"), 2))
		require.NoError(t, doc.AddTemplate(newTemplate("b.tex"), 2))
		assert.ErrorIs(t, doc.AddTemplate(newTemplate("c.tex"), 2), ErrTooManyTemplates)
		assert.Len(t, doc.Templates, 2)
	})

	t.Run("deleting the selected template selects the first remaining", func(t *testing.T) {
		doc := New()
		a, b, c := newTemplate("a.tex"), newTemplate("b.tex"), newTemplate("c.tex")
		for _, tmpl := range []types.Template{a, b, c} {
			require.NoError(t, doc.AddTemplate(tmpl, 5))
		}
		require.NoError(t, doc.SelectTemplate(c.ID))
		require.NoError(t, doc.DeleteTemplate(c.ID))
		assert.Equal(t, a.ID, doc.SelectedTemplateID)
	})

	t.Run("deleting an earlier template keeps the selection on the same template", func(t *testing.T) {
		doc := New()
		a, b, c := newTemplate("a.tex"), newTemplate("b.tex"), newTemplate("c.tex")
		for _, tmpl := range []types.Template{a, b, c} {
			require.NoError(t, doc.AddTemplate(tmpl, 5))
		}
		require.NoError(t, doc.SelectTemplate(c.ID))
		assert.Equal(t, 2, doc.SelectedIndex())

		require.NoError(t, doc.DeleteTemplate(a.ID))
		assert.Equal(t, c.ID, doc.SelectedTemplateID)
		assert.Equal(t, 1, doc.SelectedIndex())
	})

	t.Run("deleting the last template leaves nothing selected", func(t *testing.T) {
		doc := New()
		a := newTemplate("a.tex")
		require.NoError(t, doc.AddTemplate(a, 5))
		require.NoError(t, doc.DeleteTemplate(a.ID))
		assert.Equal(t, uuid.Nil, doc.SelectedTemplateID)
		assert.Equal(t, -1, doc.SelectedIndex())
		_, ok := doc.SelectedTemplate()
		assert.False(t, ok)
	})

	t.Run("unknown ids", func(t *testing.T) {
		doc := New()
		assert.ErrorIs(t, doc.DeleteTemplate(uuid.New()), ErrTemplateNotFound)
		assert.ErrorIs(t, doc.SelectTemplate(uuid.New()), ErrTemplateNotFound)
	})

	t.Run("summaries mark the selection", func(t *testing.T) {
		doc := New()
		a, b := newTemplate("a.tex"), newTemplate("b.tex")
		require.NoError(t, doc.AddTemplate(a, 5))
		require.NoError(t, doc.AddTemplate(b, 5))
		require.NoError(t, doc.SelectTemplate(b.ID))

		sums := doc.TemplateSummaries()
		require.Len(t, sums, 2)
		assert.False(t, sums[0].Selected)
		assert.True(t, sums[1].Selected)
	})
}

func TestDocument_Jobs(t *testing.T) {
	t.Run("most recent first without duplicates", func(t *testing.T) {
		doc := New()
		doc.RecordJob(types.JobRecord{ID: "a"})
		doc.RecordJob(types.JobRecord{ID: "b"})
		doc.RecordJob(types.JobRecord{ID: "a", CompanyName: "Acme"})

		require.Len(t, doc.Jobs, 2)
		assert.Equal(t, "a", doc.Jobs[0].ID)
		assert.Equal(t, "Acme", doc.Jobs[0].CompanyName)
		assert.Equal(t, "b", doc.Jobs[1].ID)
	})

	t.Run("bounded", func(t *testing.T) {
		doc := New()
		for i := 0; i < MaxJobs+5; i++ {
			doc.RecordJob(types.JobRecord{ID: fmt.Sprintf("job-%d", i)})
		}
		assert.Len(t, doc.Jobs, MaxJobs)
		assert.Equal(t, fmt.Sprintf("job-%d", MaxJobs+4), doc.Jobs[0].ID)
	})

	t.Run("update find remove", func(t *testing.T) {
		doc := New()
		doc.RecordJob(types.JobRecord{ID: "a", State: types.JobPending})

		require.NoError(t, doc.UpdateJob("a", func(r *types.JobRecord) {
			r.Apply(&types.JobStatus{Status: types.JobCompleted, Progress: 100}, time.Now())
		}))
		rec, ok := doc.FindJob("a")
		require.True(t, ok)
		assert.Equal(t, types.JobCompleted, rec.State)
		assert.NotNil(t, rec.FinishedAt)

		assert.ErrorIs(t, doc.UpdateJob("missing", func(*types.JobRecord) {}), ErrJobNotFound)
		require.NoError(t, doc.RemoveJob("a"))
		assert.ErrorIs(t, doc.RemoveJob("a"), ErrJobNotFound)
	})
}

func TestDocument_Clone(t *testing.T) {
	doc := New()
	doc.SetSession("tok", time.Now())
	require.NoError(t, doc.SetProvider(completeProvider()))
	require.NoError(t, doc.AddTemplate(newTemplate("a.tex"), 5))

	c := doc.Clone()
	c.Session.Token = "other"
	c.Provider.APIKey = "other"
	c.Templates[0].Name = "other.tex"

	assert.Equal(t, "tok", doc.SessionToken())
	assert.Equal(t, "sk-test-1234", doc.Provider.APIKey)
	assert.Equal(t, "a.tex", doc.Templates[0].Name)
}
