package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Provider identifies an LLM vendor the optimization backend can call on the user's behalf.
type Provider string

// Supported providers.
const (
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderGoogle     Provider = "google"
	ProviderMistral    Provider = "mistral"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderOpenRouter Provider = "openrouter"
	// ProviderCustom talks to any OpenAI-compatible endpoint and requires CustomEndpoint.
	ProviderCustom Provider = "custom"
)

// ProviderInfo is one entry of the provider catalog.
type ProviderInfo struct {
	ID     Provider `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// DefaultCatalog is shown when the backend catalog cannot be fetched.
func DefaultCatalog() []ProviderInfo {
	return []ProviderInfo{
		{ID: ProviderOpenAI, Name: "OpenAI", Models: []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}},
		{ID: ProviderAnthropic, Name: "Anthropic", Models: []string{
			"claude-3-5-sonnet-20241022", "claude-3-5-sonnet-20240620", "claude-3-5-haiku-20241022",
			"claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307",
		}},
		{ID: ProviderGoogle, Name: "Google AI", Models: []string{"gemini-1.5-pro", "gemini-1.5-flash", "gemini-1.0-pro"}},
		{ID: ProviderMistral, Name: "Mistral AI", Models: []string{
			"mistral-large-latest", "mistral-small-latest", "open-mistral-7b", "open-mixtral-8x7b", "open-mixtral-8x22b",
		}},
		{ID: ProviderDeepSeek, Name: "DeepSeek", Models: []string{"deepseek-chat", "deepseek-coder"}},
		{ID: ProviderCustom, Name: "Custom Provider", Models: []string{"custom-model"}},
	}
}

// FindProvider looks up a provider in a catalog.
func FindProvider(catalog []ProviderInfo, id Provider) (ProviderInfo, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderInfo{}, false
}

// ProviderConfig is the user's LLM credential and model selection.
type ProviderConfig struct {
	Provider       Provider `json:"provider" validate:"required,oneof=openai anthropic google mistral deepseek openrouter custom"`
	Model          string   `json:"model" validate:"required"`
	APIKey         string   `json:"api_key" validate:"required"`
	CustomEndpoint string   `json:"custom_endpoint,omitempty" validate:"omitempty,url"`
}

// Complete reports whether provider, model and key are all present.
// Partially populated configurations can be loaded from older state but never submitted.
func (c *ProviderConfig) Complete() bool {
	return c != nil && c.Provider != "" && c.Model != "" && c.APIKey != ""
}

// Validate validates the ProviderConfig using the validator.
func (c *ProviderConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Provider == ProviderCustom && c.CustomEndpoint == "" {
		return fmt.Errorf("custom_endpoint is required for the custom provider")
	}
	return nil
}

// Redacted returns a copy safe to render or log.
func (c ProviderConfig) Redacted() ProviderConfig {
	c.APIKey = MaskKey(c.APIKey)
	return c
}

// MaskKey keeps the last four characters of a key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("•", len(key))
	}
	return strings.Repeat("•", 8) + key[len(key)-4:]
}

// String implements fmt.Stringer without leaking the key.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("%s/%s", c.Provider, c.Model)
}

// ConnectionTestResponse is the backend verdict on a provider configuration.
type ConnectionTestResponse struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty"`
}

// OK reports whether the backend accepted the configuration.
func (r *ConnectionTestResponse) OK() bool {
	return r != nil && r.Status == "success"
}
