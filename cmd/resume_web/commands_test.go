package main

import (
	"context"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/state"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobPosting = "Senior Backend Engineer building payment APIs in Go and Postgres."

func configFor(job, jobURL, company string) config.Config {
	return config.Config{Job: job, JobURL: jobURL, Company: company}
}

func TestTemplates_AddListSelectRemove(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()
	h.writeFile(t, "/cv/resume.tex", resumeTex)
	h.writeFile(t, "/cv/academic.tex", resumeTex+"\n% academic")

	require.NoError(t, runTemplatesAdd(ctx, h.env, []string{"/cv/resume.tex", "/cv/academic.tex"}))
	assert.Contains(t, h.out.String(), "Added resume.tex")
	assert.Contains(t, h.out.String(), "Added academic.tex")

	doc, err := h.env.document(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Templates, 2)
	assert.Equal(t, doc.Templates[0].ID, doc.SelectedTemplateID, "first template is selected")

	require.NoError(t, runTemplatesSelect(ctx, h.env, []string{"academic.tex"}))
	doc, err = h.env.document(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Templates[1].ID, doc.SelectedTemplateID)

	require.NoError(t, runTemplatesRm(ctx, h.env, []string{doc.Templates[1].ID.String()[:8]}))
	doc, err = h.env.document(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Templates, 1)
	assert.Equal(t, "resume.tex", doc.Templates[0].Name)
	assert.Equal(t, doc.Templates[0].ID, doc.SelectedTemplateID, "selection falls back to the first template")
}

func TestTemplatesAdd_RejectsNonTex(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()
	h.writeFile(t, "/cv/resume.pdf", "%PDF-1.4")

	err := runTemplatesAdd(ctx, h.env, []string{"/cv/resume.pdf"})
	assert.ErrorIs(t, err, upload.ErrUnsupportedExtension)

	doc, err := h.env.document(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Templates)
}

func TestResolveTemplate(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()
	a, err := h.env.store.AddTemplate(ctx, localOwner, "same.tex", []byte(resumeTex))
	require.NoError(t, err)
	_, err = h.env.store.AddTemplate(ctx, localOwner, "same.tex", []byte(resumeTex+" "))
	require.NoError(t, err)
	doc, err := h.env.document(ctx)
	require.NoError(t, err)

	id, err := resolveTemplate(doc, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = resolveTemplate(doc, "same.tex")
	assert.ErrorContains(t, err, "matches 2 templates")

	_, err = resolveTemplate(doc, "missing.tex")
	assert.ErrorIs(t, err, state.ErrTemplateNotFound)

	_, err = resolveTemplate(doc, "  ")
	assert.Error(t, err)
}

func TestConnectProvider(t *testing.T) {
	cfg := types.ProviderConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test-abcd1234"}

	t.Run("accepted", func(t *testing.T) {
		h := newCLIHarness(t)
		ctx := context.Background()

		require.NoError(t, connectProvider(ctx, h.env, cfg))
		assert.Equal(t, 1, h.fake.Calls("test_connection"))
		assert.NotContains(t, h.out.String(), "sk-test-abcd1234", "the key is masked")

		doc, err := h.env.document(ctx)
		require.NoError(t, err)
		require.NotNil(t, doc.Provider)
		assert.Equal(t, cfg, *doc.Provider)

		require.NoError(t, runProviderDisconnect(ctx, h.env, nil))
		doc, err = h.env.document(ctx)
		require.NoError(t, err)
		assert.Nil(t, doc.Provider)
	})

	t.Run("rejected", func(t *testing.T) {
		h := newCLIHarness(t)
		ctx := context.Background()
		h.fake.SetConnection(types.ConnectionTestResponse{Status: "error", Message: "Invalid API key"})

		err := connectProvider(ctx, h.env, cfg)
		assert.ErrorContains(t, err, "nothing was saved")

		doc, err := h.env.document(ctx)
		require.NoError(t, err)
		assert.Nil(t, doc.Provider)
	})

	t.Run("incomplete", func(t *testing.T) {
		h := newCLIHarness(t)
		err := connectProvider(context.Background(), h.env, types.ProviderConfig{Provider: types.ProviderOpenAI, Model: "gpt-4o"})
		assert.ErrorIs(t, err, state.ErrIncompleteProvider)
		assert.Zero(t, h.fake.Calls("test_connection"))
	})
}

func TestProviderList(t *testing.T) {
	h := newCLIHarness(t)
	require.NoError(t, runProviderList(context.Background(), h.env, nil))
	assert.Equal(t, 1, h.fake.Calls("providers"))
	assert.Contains(t, h.out.String(), "gpt-4o")
}

func TestOptimize_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		req  optimizeRequest
		want string
	}{
		{"both sources", optimizeRequest{Config: configFor("/job.txt", "https://jobs.example/1", "Acme")}, "mutually exclusive"},
		{"no source", optimizeRequest{Config: configFor("", "", "Acme")}, "either --job or --job-url"},
		{"no company", optimizeRequest{Config: configFor("/job.txt", "", " ")}, "--company is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCLIHarness(t)
			err := optimize(context.Background(), h.env, tt.req)
			assert.ErrorContains(t, err, tt.want)
			assert.Zero(t, h.fake.Calls("submit"))
		})
	}
}

func TestOptimize_WritesArtifacts(t *testing.T) {
	h := newCLIHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.writeFile(t, "/job.txt", jobPosting)

	h.fake.Script("job-1",
		types.JobStatus{OptimizationID: "job-1", Status: types.JobProcessing, Progress: 40, Message: "Optimizing"},
		types.JobStatus{OptimizationID: "job-1", Status: types.JobCompleted, Progress: 100},
	)
	h.fake.SetResult("job-1", &types.JobResult{
		OptimizationID: "job-1",
		Status:         types.JobCompleted,
		OptimizedTex:   "\\documentclass{article} Go engineer",
		CoverLetter:    "Dear Acme team",
		PDFDownloadURL: "/download/job-1",
	})

	cfg := configFor("/job.txt", "", "Acme")
	cfg.CoverLetter = true
	require.NoError(t, optimize(ctx, h.env, optimizeRequest{Config: cfg, Out: "/out"}))

	submitted := h.fake.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, jobPosting, submitted[0].JobDescription)
	assert.Equal(t, resumeTex, submitted[0].TexContent)
	assert.True(t, submitted[0].GenerateCoverLetter)

	assert.Contains(t, h.readFile(t, "/out/resume-acme.tex"), "Go engineer")
	assert.Equal(t, "Dear Acme team", h.readFile(t, "/out/resume-acme-cover-letter.txt"))
	assert.Equal(t, "%PDF-1.4 fake job-1", h.readFile(t, "/out/resume-acme.pdf"))

	rec, err := h.env.store.FindJob(ctx, localOwner, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, rec.State)
}

func TestOptimize_Failure(t *testing.T) {
	h := newCLIHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.writeFile(t, "/job.txt", jobPosting)

	h.fake.Script("job-1", types.JobStatus{OptimizationID: "job-1", Status: types.JobFailed, Error: "LaTeX compilation failed"})
	h.fake.SetResult("job-1", &types.JobResult{
		OptimizationID: "job-1",
		Status:         types.JobFailed,
		OptimizedTex:   "\\documentclass{article} partial",
	})

	err := optimize(ctx, h.env, optimizeRequest{Config: configFor("/job.txt", "", "Acme"), Out: "/out"})
	assert.EqualError(t, err, "optimization failed: LaTeX compilation failed")
	assert.Contains(t, h.readFile(t, "/out/resume-acme.tex"), "partial")

	rec, err := h.env.store.FindJob(ctx, localOwner, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, rec.State)
}

func TestOptimize_Detach(t *testing.T) {
	h := newCLIHarness(t)
	h.ready(t)
	h.writeFile(t, "/job.txt", jobPosting)

	require.NoError(t, optimize(context.Background(), h.env, optimizeRequest{Config: configFor("/job.txt", "", "Acme"), Detach: true}))
	assert.Contains(t, h.out.String(), "status --watch job-1")
	assert.Zero(t, h.fake.Calls("status:job-1"))
}

func TestEnsureTemplate_ReusesIdenticalFile(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()
	h.writeFile(t, "/cv/resume.tex", resumeTex)

	first, err := ensureTemplate(ctx, h.env, "/cv/resume.tex")
	require.NoError(t, err)
	second, err := ensureTemplate(ctx, h.env, "/cv/resume.tex")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	h.writeFile(t, "/cv/resume.tex", resumeTex+"\n% edited")
	third, err := ensureTemplate(ctx, h.env, "/cv/resume.tex")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	doc, err := h.env.document(ctx)
	require.NoError(t, err)
	assert.Len(t, doc.Templates, 2)
}

func TestStatusAndResult(t *testing.T) {
	h := newCLIHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.writeFile(t, "/job.txt", jobPosting)
	require.NoError(t, optimize(ctx, h.env, optimizeRequest{Config: configFor("/job.txt", "", "Globex"), Detach: true}))

	h.fake.Script("job-1", types.JobStatus{OptimizationID: "job-1", Status: types.JobProcessing, Progress: 55, Message: "Rewriting bullets"})
	h.out.Reset()
	require.NoError(t, runStatus(ctx, h.env, []string{"job-1"}))
	assert.Contains(t, h.out.String(), "Rewriting bullets")

	h.out.Reset()
	require.NoError(t, runStatus(ctx, h.env, nil))
	assert.Contains(t, h.out.String(), "Globex")

	err := runStatus(ctx, h.env, []string{"job-404"})
	assert.Error(t, err)

	h.fake.SetResult("job-1", &types.JobResult{OptimizationID: "job-1", Status: types.JobCompleted, OptimizedTex: "\\documentclass{article} done"})
	require.NoError(t, showResult(ctx, h.env, "job-1", "/res"))
	assert.Contains(t, h.readFile(t, "/res/resume-globex.tex"), "done")
}

func TestDelete(t *testing.T) {
	h := newCLIHarness(t)
	h.ready(t)
	ctx := context.Background()
	h.writeFile(t, "/job.txt", jobPosting)
	require.NoError(t, optimize(ctx, h.env, optimizeRequest{Config: configFor("/job.txt", "", "Acme"), Detach: true}))

	require.NoError(t, runDelete(ctx, h.env, []string{"job-1"}))
	assert.Equal(t, 1, h.fake.Calls("delete:job-1"))

	_, err := h.env.store.FindJob(ctx, localOwner, "job-1")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	t.Run("local fallback", func(t *testing.T) {
		h := newCLIHarness(t)
		h.ready(t)
		ctx := context.Background()
		h.writeFile(t, "/job.txt", jobPosting)
		require.NoError(t, optimize(ctx, h.env, optimizeRequest{Config: configFor("/job.txt", "", "Acme"), Detach: true}))

		h.out.Reset()
		require.NoError(t, runStats(ctx, h.env, nil))
		assert.Contains(t, h.out.String(), "(computed from local history)")
		assert.Zero(t, h.fake.Calls("dashboard"), "no session means no backend call")
	})

	t.Run("backend", func(t *testing.T) {
		h := newCLIHarness(t)
		ctx := context.Background()
		require.NoError(t, h.env.store.SetSession(ctx, localOwner, "cli-token"))
		h.fake.SetDashboard(&types.Dashboard{})

		require.NoError(t, runStats(ctx, h.env, nil))
		assert.Equal(t, 1, h.fake.Calls("dashboard"))
		assert.NotContains(t, h.out.String(), "local history")
		assert.Contains(t, h.fake.Tokens(), "Bearer cli-token")
	})
}

func TestArtifactBase(t *testing.T) {
	tests := map[string]string{
		"Acme":             "resume-acme",
		"Globex Corp.":     "resume-globex-corp",
		"  --Initech--  ":  "resume-initech",
		"":                 "resume",
		"日本":               "resume",
		"Umbrella_Health2": "resume-umbrella-health2",
	}
	for in, want := range tests {
		assert.Equal(t, want, artifactBase(in), in)
	}
}

func TestATS(t *testing.T) {
	resume := "%PDF-1.7\nJane Doe\nSenior Go engineer. Led payments platform work at Acme.\n%%EOF"

	t.Run("signed out", func(t *testing.T) {
		h := newCLIHarness(t)
		h.writeFile(t, "/cv/resume.pdf", resume)

		require.NoError(t, analyzeResume(context.Background(), h.env, "/cv/resume.pdf", ""))
		assert.Contains(t, h.out.String(), "78/100 (good)")
		assert.Contains(t, h.out.String(), "Sign in for the full report")
		require.Len(t, h.fake.ATSUploads(), 1)
		assert.False(t, h.fake.ATSUploads()[0].Authenticated)
	})

	t.Run("with session and job description", func(t *testing.T) {
		h := newCLIHarness(t)
		ctx := context.Background()
		require.NoError(t, h.env.store.SetSession(ctx, localOwner, "cli-token"))
		h.writeFile(t, "/cv/resume.docx", resume)
		h.writeFile(t, "/job.txt", jobPosting)

		require.NoError(t, analyzeResume(ctx, h.env, "/cv/resume.docx", "/job.txt"))
		assert.NotContains(t, h.out.String(), "Sign in for the full report")
		uploads := h.fake.ATSUploads()
		require.Len(t, uploads, 1)
		assert.Equal(t, "resume.docx", uploads[0].Filename)
		assert.Equal(t, jobPosting, uploads[0].JobDescription)
		assert.Contains(t, h.fake.Tokens(), "Bearer cli-token")
	})

	t.Run("unsupported file", func(t *testing.T) {
		h := newCLIHarness(t)
		h.writeFile(t, "/cv/resume.txt", resume)

		err := analyzeResume(context.Background(), h.env, "/cv/resume.txt", "")
		assert.ErrorIs(t, err, upload.ErrUnsupportedResume)
		assert.Zero(t, h.fake.Calls("ats"))
	})
}
