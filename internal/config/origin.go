package config

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Origins is a normalized allow-list of browser origins permitted to open
// WebSocket connections. The zero value allows nothing.
type Origins struct {
	allowAll bool
	list     []string
	set      map[string]struct{}
}

// NewOrigins normalizes the configured origins. A "*" entry allows every
// origin; malformed entries are dropped with a warning.
func NewOrigins(origins []string) Origins {
	o := Origins{set: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			o.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("Ignoring invalid origin in configuration", slog.String("origin", origin))
			continue
		}
		if _, dup := o.set[normalized]; dup {
			continue
		}
		o.set[normalized] = struct{}{}
		o.list = append(o.list, normalized)
	}

	return o
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// List returns the normalized origins, without the wildcard.
func (o Origins) List() []string {
	return append([]string(nil), o.list...)
}

// AllowAll reports whether the wildcard origin was configured.
func (o Origins) AllowAll() bool {
	return o.allowAll
}

// Allowed reports whether the request's Origin header is on the allow-list.
// Requests without an Origin header are rejected.
func (o Origins) Allowed(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}

	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}

	if o.allowAll {
		return true
	}

	_, exists := o.set[normalized]
	return exists
}
