// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Config is the CLI configuration file. Every field is optional; command-line
// flags fill or override it.
type Config struct {
	Template     string `json:"template,omitempty"` // local .tex file to optimize
	Job          string `json:"job,omitempty"`      // job posting text file
	JobURL       string `json:"job_url,omitempty"`
	Company      string `json:"company,omitempty"`
	Instructions string `json:"instructions,omitempty"`

	BackendURL string `json:"backend_url,omitempty"`
	StatePath  string `json:"state_path,omitempty"` // SQLite file holding local state

	CoverLetter bool `json:"cover_letter,omitempty"`
	ColdEmail   bool `json:"cold_email,omitempty"`
	UseBrowser  bool `json:"use_browser,omitempty"` // render script-heavy job boards in Chrome
	Verbose     bool `json:"verbose,omitempty"`
}

// LoadConfig reads a JSON config file from disk.
func LoadConfig(path string) (*Config, error) {
	return Load(afero.NewOsFs(), path)
}

// Load reads a JSON config file from fsys. Unknown keys are rejected so a
// misspelled option is not silently ignored. Relative paths inside the file
// are resolved against the file's directory.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Template, &cfg.Job, &cfg.StatePath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return &cfg, nil
}

// Validate checks the values that can be checked before flags are merged.
func (c *Config) Validate() error {
	return c.ValidateFS(afero.NewOsFs())
}

// ValidateFS is Validate with file checks against fsys.
func (c *Config) ValidateFS(fsys afero.Fs) error {
	if c.Job != "" && c.JobURL != "" {
		return fmt.Errorf("config error: 'job' and 'job_url' are mutually exclusive")
	}
	if c.JobURL != "" && !isHTTPURL(c.JobURL) {
		return fmt.Errorf("config error: job_url must be an http or https URL: %s", c.JobURL)
	}
	if c.BackendURL != "" && !isHTTPURL(c.BackendURL) {
		return fmt.Errorf("config error: backend_url must be an http or https URL: %s", c.BackendURL)
	}

	if c.Template != "" {
		if !strings.EqualFold(filepath.Ext(c.Template), ".tex") {
			return fmt.Errorf("config error: template must be a .tex file: %s", c.Template)
		}
		if err := mustExist(fsys, c.Template); err != nil {
			return fmt.Errorf("config error: template file not found: %s", c.Template)
		}
	}
	if c.Job != "" {
		if err := mustExist(fsys, c.Job); err != nil {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}
	return nil
}

func mustExist(fsys afero.Fs, path string) error {
	_, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MergeWithDefaults returns c with its empty string fields taken from defaults.
// Booleans are not merged because an unset flag cannot be told from false.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c
	pairs := []struct{ dst, src *string }{
		{&result.Template, &defaults.Template},
		{&result.Job, &defaults.Job},
		{&result.JobURL, &defaults.JobURL},
		{&result.Company, &defaults.Company},
		{&result.Instructions, &defaults.Instructions},
		{&result.BackendURL, &defaults.BackendURL},
		{&result.StatePath, &defaults.StatePath},
	}
	for _, p := range pairs {
		if *p.dst == "" {
			*p.dst = *p.src
		}
	}
	return result
}
