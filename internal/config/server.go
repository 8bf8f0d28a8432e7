package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultPort             = "8080"
	DefaultBackendURL       = "http://localhost:8000"
	DefaultPublicBaseURL    = "http://localhost:8080"
	DefaultPollInterval     = 3 * time.Second
	DefaultMaxTemplates     = 5
	DefaultMaxTemplateBytes = 1 << 20
	DefaultPostHogEndpoint  = "https://us.i.posthog.com"
)

// GoogleConfig holds OAuth client settings for the identity provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign-in can be offered.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// ServerConfig is the web server configuration, read from the environment.
type ServerConfig struct {
	Port          string
	DatabaseURL   string // empty means in-memory state
	BackendURL    string
	PublicBaseURL string

	PollInterval     time.Duration
	MaxTemplates     int
	MaxTemplateBytes int64

	Google        GoogleConfig
	DevAuthBypass bool
	SealingKey    string // base64, 32 bytes

	PostHogKey      string
	PostHogEndpoint string

	MetricsPort     string // empty serves /metrics on the main listener
	TracingExporter string // "", "none" or "stdout"
	LogLevel        string
	LogFormat       string
}

// NewServerConfig builds the server configuration from environment variables.
func NewServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:            getEnv("PORT", DefaultPort),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		BackendURL:      getEnv("BACKEND_URL", DefaultBackendURL),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", DefaultPublicBaseURL),
		DevAuthBypass:   getEnvBool("AUTH_DEV_BYPASS", false),
		SealingKey:      getEnv("STATE_SEALING_KEY", ""),
		PostHogKey:      getEnv("POSTHOG_API_KEY", ""),
		PostHogEndpoint: getEnv("POSTHOG_ENDPOINT", DefaultPostHogEndpoint),
		MetricsPort:     getEnv("METRICS_PORT", ""),
		TracingExporter: getEnv("TRACING_EXPORTER", "none"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},
	}

	var err error
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}
	if cfg.MaxTemplates, err = getEnvInt("MAX_TEMPLATES", DefaultMaxTemplates); err != nil {
		return nil, fmt.Errorf("invalid MAX_TEMPLATES: %w", err)
	}
	maxBytes, err := getEnvInt("MAX_TEMPLATE_BYTES", DefaultMaxTemplateBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_TEMPLATE_BYTES: %w", err)
	}
	cfg.MaxTemplateBytes = int64(maxBytes)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) normalize() error {
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid BACKEND_URL %q: %w", c.BackendURL, err)
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got: %s", c.PollInterval)
	}
	if c.MaxTemplates < 1 {
		return fmt.Errorf("MAX_TEMPLATES must be at least 1, got: %d", c.MaxTemplates)
	}
	if c.MaxTemplateBytes < 1 {
		return fmt.Errorf("MAX_TEMPLATE_BYTES must be positive, got: %d", c.MaxTemplateBytes)
	}
	if c.Google.RedirectURL == "" {
		c.Google.RedirectURL = c.PublicBaseURL + "/auth/google/callback"
	}
	if !c.Google.Enabled() && !c.DevAuthBypass {
		return fmt.Errorf("either GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET or AUTH_DEV_BYPASS=true is required")
	}
	switch c.TracingExporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unsupported TRACING_EXPORTER %q", c.TracingExporter)
	}
	return nil
}
