package config

import (
	"fmt"
	"net/url"
	"strings"

	"eams/internal/expand"
	"eams/internal/logging"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted config key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var storageKinds = map[string]bool{"": true, "sqlite": true, "postgres": true, "mssql": true}

// Validate checks cfg and returns every finding; it never stops early.
func Validate(cfg Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(cfg.Portal.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add(SeverityError, "portal.base_url", "must be an absolute url, got %q", cfg.Portal.BaseURL)
	} else if u.Scheme != "https" {
		add(SeverityWarning, "portal.base_url", "scheme %q is not https", u.Scheme)
	}
	if cfg.Portal.Timeout < 0 {
		add(SeverityError, "portal.timeout", "must not be negative")
	}
	if cfg.Portal.Retries < 0 {
		add(SeverityError, "portal.retries", "must not be negative")
	} else if cfg.Portal.Retries > 10 {
		add(SeverityWarning, "portal.retries", "%d retries can hammer the portal", cfg.Portal.Retries)
	}
	if cfg.Portal.RateLimit < 0 {
		add(SeverityError, "portal.rate_limit", "must not be negative")
	}
	if cfg.Portal.CacheTTL < 0 {
		add(SeverityError, "portal.cache_ttl", "must not be negative")
	}

	if cfg.Requester.Email != "" && !strings.Contains(cfg.Requester.Email, "@") {
		add(SeverityWarning, "requester.email", "%q does not look like an email address", cfg.Requester.Email)
	}

	if _, err := expand.ParseMode(cfg.Extract.Expand); err != nil {
		add(SeverityError, "extract.expand", "%v", err)
	}
	if cfg.Extract.Concurrency < 0 {
		add(SeverityError, "extract.concurrency", "must not be negative")
	} else if cfg.Extract.Concurrency > 16 {
		add(SeverityWarning, "extract.concurrency", "%d parallel fetches is impolite to the portal", cfg.Extract.Concurrency)
	}
	if cfg.Extract.Events && strings.EqualFold(strings.TrimSpace(cfg.Extract.Expand), string(expand.ModeBasic)) {
		add(SeverityWarning, "extract.events", "ignored unless expand is case")
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Storage.Kind))
	if !storageKinds[kind] {
		add(SeverityError, "storage.kind", "unknown backend %q (want sqlite, postgres or mssql)", cfg.Storage.Kind)
	}
	if kind != "" && strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "required when storage.kind is set")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Metrics.Backend)) {
	case "", "none", "noop":
	case "pushgateway", "prom", "prometheus":
		if strings.TrimSpace(cfg.Metrics.PushgatewayURL) == "" {
			add(SeverityError, "metrics.pushgateway_url", "required for the pushgateway backend")
		}
	case "datadog", "dd":
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q", cfg.Metrics.Backend)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		add(SeverityError, "log.level", "%v", err)
	}
	return out
}
