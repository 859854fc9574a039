package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RP_ID", "apps.example.com")
	t.Setenv("RP_NAME", "Example Apps")
	t.Setenv("RP_ORIGINS", "https://apps.example.com, https://notes.example.com")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
}

func TestLoadReadsEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_APPS", "notes,chat")
	t.Setenv("CHALLENGE_TTL", "2m")
	t.Setenv("ROUTE_PREFIX", "/functions/auth-api")

	cfg := Load()

	if cfg.WebAuthn.RPID != "apps.example.com" {
		t.Fatalf("expected RP id, got %q", cfg.WebAuthn.RPID)
	}
	if len(cfg.WebAuthn.RPOrigins) != 2 || cfg.WebAuthn.RPOrigins[1] != "https://notes.example.com" {
		t.Fatalf("expected trimmed origins, got %v", cfg.WebAuthn.RPOrigins)
	}
	if strings.Join(cfg.Apps.Allowed, ",") != "notes,chat" {
		t.Fatalf("expected allow-list from env, got %v", cfg.Apps.Allowed)
	}
	if cfg.Challenge.TTL != 2*time.Minute {
		t.Fatalf("expected challenge ttl 2m, got %s", cfg.Challenge.TTL)
	}
	if cfg.Server.RoutePrefix != "/functions/auth-api" {
		t.Fatalf("expected route prefix, got %q", cfg.Server.RoutePrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.Challenge.TTL != 5*time.Minute {
		t.Fatalf("expected default challenge ttl 5m, got %s", cfg.Challenge.TTL)
	}
	if cfg.Apps.TokenTTL != time.Hour {
		t.Fatalf("expected default app token ttl 1h, got %s", cfg.Apps.TokenTTL)
	}
	if cfg.Server.RoutePrefix != "/auth-api" {
		t.Fatalf("expected default prefix, got %q", cfg.Server.RoutePrefix)
	}
	if cfg.Challenge.Backend != ChallengeBackendDatabase {
		t.Fatalf("expected database challenge backend, got %q", cfg.Challenge.Backend)
	}
}

func TestValidateReportsMissingSettings(t *testing.T) {
	cfg := &Config{
		DB:        DBConfig{Driver: "mysql"},
		Challenge: ChallengeConfig{Backend: "memcached", TTL: time.Minute},
		Apps:      AppsConfig{Allowed: []string{"notes"}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	for _, want := range []string{"RP_ID", "RP_NAME", "RP_ORIGINS", "JWT_SECRET", "DB_DRIVER", "CHALLENGE_BACKEND"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}
