package config

import (
	"testing"
)

func TestValidate_DefaultIsClean(t *testing.T) {
	t.Parallel()

	if issues := Validate(Default()); len(issues) != 0 {
		t.Fatalf("issues=%v", issues)
	}
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
		wantSev  Severity
	}{
		{"relative base", func(c *Config) { c.Portal.BaseURL = "WebEnhancement/" }, "portal.base_url", SeverityError},
		{"http base", func(c *Config) { c.Portal.BaseURL = "http://eams.local/" }, "portal.base_url", SeverityWarning},
		{"negative retries", func(c *Config) { c.Portal.Retries = -1 }, "portal.retries", SeverityError},
		{"many retries", func(c *Config) { c.Portal.Retries = 50 }, "portal.retries", SeverityWarning},
		{"negative rate", func(c *Config) { c.Portal.RateLimit = -1 }, "portal.rate_limit", SeverityError},
		{"bad email", func(c *Config) { c.Requester.Email = "admin" }, "requester.email", SeverityWarning},
		{"bad expand", func(c *Config) { c.Extract.Expand = "deep" }, "extract.expand", SeverityError},
		{"events with basic", func(c *Config) { c.Extract.Expand = "basic"; c.Extract.Events = true }, "extract.events", SeverityWarning},
		{"bad storage", func(c *Config) { c.Storage.Kind = "oracle"; c.Storage.DSN = "x" }, "storage.kind", SeverityError},
		{"storage without dsn", func(c *Config) { c.Storage.Kind = "sqlite" }, "storage.dsn", SeverityError},
		{"pushgateway without url", func(c *Config) { c.Metrics.Backend = "pushgateway" }, "metrics.pushgateway_url", SeverityError},
		{"bad metrics", func(c *Config) { c.Metrics.Backend = "statsd" }, "metrics.backend", SeverityError},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level", SeverityError},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(&cfg)
			issues := Validate(cfg)
			if len(issues) != 1 {
				t.Fatalf("issues=%v want exactly one", issues)
			}
			if issues[0].Path != tc.wantPath || issues[0].Severity != tc.wantSev {
				t.Fatalf("issue=%v want %s %s", issues[0], tc.wantSev, tc.wantPath)
			}
			if HasErrors(issues) != (tc.wantSev == SeverityError) {
				t.Fatalf("HasErrors mismatch for %v", issues)
			}
		})
	}
}
