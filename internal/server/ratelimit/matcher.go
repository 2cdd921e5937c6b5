package ratelimit

import (
	"path"
	"strings"
)

// unlimited is returned for probes that must never be throttled.
var unlimited = EndpointConfig{Path: "unlimited"}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Exact paths win over patterns, and patterns over "/"-suffixed prefixes.
// Returns nil when nothing matches.
func MatchEndpoint(p string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && (p == "/health" || p == "/metrics") {
		return &unlimited
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && c.Path == p {
			return c
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method != method || !strings.Contains(c.Path, "*") {
			continue
		}
		if ok, _ := path.Match(c.Path, p); ok {
			return c
		}
	}

	for i := range configs {
		c := &configs[i]
		if c.Method == method && strings.HasSuffix(c.Path, "/") && strings.HasPrefix(p, c.Path) {
			return c
		}
	}

	return nil
}
