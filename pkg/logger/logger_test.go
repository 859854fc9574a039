package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Init)

	ErrorWithUser("user-1", "passkey_login_failed", errors.New("bad signature"), map[string]interface{}{
		"path": "/webauthn/login/finish",
	})

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry.Level != LevelError {
		t.Fatalf("expected level error, got %s", entry.Level)
	}
	if entry.UserID == nil || *entry.UserID != "user-1" {
		t.Fatalf("expected user id to be recorded, got %+v", entry.UserID)
	}
	if entry.Error != "bad signature" {
		t.Fatalf("expected error text, got %q", entry.Error)
	}
	if entry.Details["path"] != "/webauthn/login/finish" {
		t.Fatalf("expected details to be kept, got %+v", entry.Details)
	}
}

func TestGetRequestBodySummaryRedactsTokens(t *testing.T) {
	app := fiber.New()
	var summary string
	app.Post("/", func(c *fiber.Ctx) error {
		summary = GetRequestBodySummary(c)
		return c.SendStatus(fiber.StatusOK)
	})

	body := `{"app_token":"secret-value","app_name":"notes","response":{"signature":"abc"}}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if _, err := app.Test(req, -1); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if strings.Contains(summary, "secret-value") || strings.Contains(summary, "abc") {
		t.Fatalf("expected tokens to be redacted, got %q", summary)
	}
	if !strings.Contains(summary, "notes") {
		t.Fatalf("expected non-sensitive fields to remain, got %q", summary)
	}
}
