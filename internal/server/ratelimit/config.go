package ratelimit

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig limits one method on a path. A Path ending in "/" also
// covers every path below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int           // requests per Window
	Window time.Duration
	Burst  int // defaults to Limit
}

func (e EndpointConfig) String() string {
	return fmt.Sprintf("%s %s=%d/%s", e.Method, e.Path, e.Limit, e.Window)
}

// LoadConfig reads the limiter settings from the environment:
//
//	RATE_LIMIT_ENABLED           default true
//	RATE_LIMIT_DEFAULT_LIMIT     requests per window for unlisted endpoints, default 600
//	RATE_LIMIT_DEFAULT_WINDOW    default 1m
//	RATE_LIMIT_CLEANUP_INTERVAL  default 5m
//	RATE_LIMIT_WHITELIST         comma separated client IPs
//	RATE_LIMIT_BLACKLIST         comma separated client IPs
//	RATE_LIMIT_RULES             extra rules, e.g. "POST /api/jobs=5/1h,POST /api/import=10/1m"
//
// Malformed values fall back to the defaults with a warning.
func LoadConfig() *Config {
	if !envBool("RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}

	rules := DefaultEndpointConfigs()
	if raw := os.Getenv("RATE_LIMIT_RULES"); raw != "" {
		extra, err := ParseRules(raw)
		if err != nil {
			slog.Warn("ignoring RATE_LIMIT_RULES", "error", err)
		} else {
			rules = mergeRules(rules, extra)
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envInt("RATE_LIMIT_DEFAULT_LIMIT", 600),
		DefaultWindow:   envDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       ipSet(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       ipSet(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: rules,
	}
}

// DefaultEndpointConfigs returns the built-in per-endpoint limits.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Submissions and recompiles spend backend capacity.
		{Path: "/api/jobs", Method: "POST", Limit: 10, Window: time.Hour, Burst: 3},
		{Path: "/api/jobs/", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},

		{Path: "/api/provider/test", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/api/import", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/api/ats", Method: "POST", Limit: 10, Window: time.Minute, Burst: 3},
		{Path: "/auth/", Method: "GET", Limit: 30, Window: time.Minute, Burst: 10},
		{Path: "/auth/", Method: "POST", Limit: 30, Window: time.Minute, Burst: 10},

		{Path: "/api/templates", Method: "POST", Limit: 30, Window: time.Minute, Burst: 10},
		{Path: "/api/templates/", Method: "DELETE", Limit: 60, Window: time.Minute, Burst: 10},
		{Path: "/api/provider", Method: "PUT", Limit: 30, Window: time.Minute, Burst: 10},
	}
}

// ParseRules parses comma separated "METHOD /path=LIMIT/WINDOW" rules.
func ParseRules(raw string) ([]EndpointConfig, error) {
	var rules []EndpointConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		route, quota, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("rule %q: missing '='", item)
		}
		method, path, ok := strings.Cut(strings.TrimSpace(route), " ")
		path = strings.TrimSpace(path)
		if !ok || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("rule %q: route must look like \"POST /api/jobs\"", item)
		}
		limitStr, windowStr, ok := strings.Cut(strings.TrimSpace(quota), "/")
		if !ok {
			return nil, fmt.Errorf("rule %q: quota must look like \"10/1h\"", item)
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("rule %q: invalid limit %q", item, limitStr)
		}
		window, err := time.ParseDuration(windowStr)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rule %q: invalid window %q", item, windowStr)
		}
		rules = append(rules, EndpointConfig{Path: path, Method: strings.ToUpper(method), Limit: limit, Window: window})
	}
	return rules, nil
}

// mergeRules replaces base rules with the same method and path and appends the rest.
func mergeRules(base, extra []EndpointConfig) []EndpointConfig {
	out := append([]EndpointConfig(nil), base...)
next:
	for _, r := range extra {
		for i := range out {
			if out[i].Method == r.Method && out[i].Path == r.Path {
				out[i] = r
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return v
}

func ipSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}
