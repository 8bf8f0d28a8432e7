package ratelimit

import (
	"net/http"
	"strings"
)

// exempt never consumes tokens.
var exempt = EndpointConfig{}

// MatchEndpoint returns the rule for a request. Health, metrics and static
// assets are exempt. An exact path match wins, then the longest matching
// prefix rule. It returns nil when no rule applies.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && (path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/static/")) {
		return &exempt
	}

	var best *EndpointConfig
	for i := range configs {
		rule := &configs[i]
		if rule.Method != method {
			continue
		}
		if rule.Path == path {
			return rule
		}
		if strings.HasSuffix(rule.Path, "/") && strings.HasPrefix(path, rule.Path) &&
			(best == nil || len(rule.Path) > len(best.Path)) {
			best = rule
		}
	}
	return best
}
