package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestRequestIDGenerated(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	var seen string
	app.Get("/test", func(c fiber.Ctx) error {
		seen = GetRequestID(c)
		return c.SendString("OK")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if seen == "" {
		t.Error("request ID should not be empty")
	}
	if got := resp.Header.Get("X-Request-ID"); got != seen {
		t.Errorf("response header should carry the request ID, got %q", got)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("expected client request ID to be preserved, got %q", got)
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Recovery())

	app.Get("/panic", func(c fiber.Ctx) error {
		panic("test panic")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig()))

	app.Get("/test", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://example.com")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("preflight should answer 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://allowed.example.com"}

	app := fiber.New()
	app.Use(CORS(cfg))

	app.Get("/test", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("expected 403 for disallowed origin, got %d", resp.StatusCode)
	}
}
