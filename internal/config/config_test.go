package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/home/ada/ro/config.json", []byte(`{
		"template": "resume.tex",
		"job_url": "https://example.com/job",
		"company": "Acme",
		"backend_url": "http://localhost:8000",
		"state_path": "/var/lib/ro/state.db",
		"cover_letter": true,
		"verbose": true
	}`), 0o644))

	cfg, err := Load(fsys, "/home/ada/ro/config.json")
	require.NoError(t, err)

	assert.Equal(t, "/home/ada/ro/resume.tex", cfg.Template, "relative paths resolve against the file")
	assert.Equal(t, "/var/lib/ro/state.db", cfg.StatePath)
	assert.Equal(t, "https://example.com/job", cfg.JobURL)
	assert.Equal(t, "Acme", cfg.Company)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.True(t, cfg.CoverLetter)
	assert.False(t, cfg.ColdEmail)
	assert.True(t, cfg.Verbose)
}

func TestLoad_Errors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bad.json", []byte(`{ invalid json }`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/typo.json", []byte(`{"compnay": "Acme"}`), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"empty path", "", "config path is empty"},
		{"missing file", "/nonexistent/config.json", "failed to read config file"},
		{"invalid json", "/bad.json", "failed to parse config JSON"},
		{"unknown key", "/typo.json", "compnay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(fsys, tt.path)
			assert.Nil(t, cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"company": "Globex"}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Globex", cfg.Company)
}

func TestConfig_ValidateFS(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/cv/resume.tex", []byte(`\documentclass{article}`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/cv/resume.md", []byte(`# CV`), 0o644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty config", cfg: Config{}},
		{name: "existing template", cfg: Config{Template: "/cv/resume.tex", BackendURL: "https://api.example.com"}},
		{name: "job and job_url", cfg: Config{Job: "job.txt", JobURL: "https://example.com"}, wantErr: "mutually exclusive"},
		{name: "job_url scheme", cfg: Config{JobURL: "ftp://example.com/job"}, wantErr: "job_url must be an http"},
		{name: "backend_url", cfg: Config{BackendURL: "localhost:8000"}, wantErr: "backend_url must be an http"},
		{name: "template extension", cfg: Config{Template: "/cv/resume.md"}, wantErr: "must be a .tex file"},
		{name: "missing template", cfg: Config{Template: "/cv/missing.tex"}, wantErr: "template file not found"},
		{name: "missing job file", cfg: Config{Job: "/cv/missing.txt"}, wantErr: "job file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateFS(fsys)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_MergeWithDefaults(t *testing.T) {
	cfg := Config{Company: "Acme", Verbose: true}
	defaults := Config{
		Company:    "Other",
		Template:   "resume.tex",
		BackendURL: "http://backend",
		StatePath:  "state.db",
		ColdEmail:  true,
	}

	merged := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "Acme", merged.Company, "explicit values win")
	assert.Equal(t, "resume.tex", merged.Template)
	assert.Equal(t, "http://backend", merged.BackendURL)
	assert.Equal(t, "state.db", merged.StatePath)
	assert.True(t, merged.Verbose)
	assert.False(t, merged.ColdEmail, "booleans are not merged")
	assert.Equal(t, "Acme", cfg.Company, "receiver is unchanged")
}
