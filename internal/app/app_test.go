package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"riverbank/internal/config"
	"riverbank/internal/encryption"
	"riverbank/internal/riverbank"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("test-instance", t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Moderation = config.ModerationConfig{Type: "static"}
	cfg.Vault = config.VaultConfig{Type: "memory", Name: "test"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *RiverbankApp {
	t.Helper()
	a, err := NewRiverbankApp(context.Background(), cfg, config.Secrets{})
	if err != nil {
		t.Fatalf("NewRiverbankApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewRiverbankApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown database", func(c *config.Config) { c.Database.Type = "postgres" }},
		{"unknown classifier", func(c *config.Config) { c.Moderation.Type = "magic" }},
		{"unknown limiter", func(c *config.Config) { c.RateLimit.Type = "leaky" }},
		{"sealing without keys", func(c *config.Config) { c.Sealing.Type = "age" }},
		{"unknown vault", func(c *config.Config) { c.Vault.Type = "tape" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if _, err := NewRiverbankApp(context.Background(), cfg, config.Secrets{}); err == nil {
				t.Error("NewRiverbankApp() expected error")
			}
		})
	}
}

func TestRiverbankApp_Handler(t *testing.T) {
	a := newTestApp(t, newTestConfig(t))
	h := a.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/bottles/throw",
		strings.NewReader(`{"message":"a calm message floating down the river"}`))
	req.Header.Set("CF-Connecting-IP", "203.0.113.10")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("throw status = %d, body %s", rec.Code, rec.Body.String())
	}

	stats, err := a.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.ActiveBottles != 1 || stats.LastSequenceNumber != 1 {
		t.Errorf("Stats() = %+v", stats)
	}

	version, err := a.SchemaVersion()
	if err != nil || version == 0 {
		t.Errorf("SchemaVersion() = %d, %v", version, err)
	}
}

func TestRiverbankApp_Snapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t))

	if _, err := a.service.Throw(ctx, riverbank.ThrowRequest{Message: "something worth keeping safe", Origin: "192.0.2.1"}); err != nil {
		t.Fatalf("Throw() error = %v", err)
	}

	name, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !strings.HasPrefix(name, "snapshots/test-instance-") {
		t.Errorf("snapshot name = %q", name)
	}

	snaps, err := a.Snapshots(ctx)
	if err != nil {
		t.Fatalf("Snapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].Name != name || snaps[0].Size == 0 {
		t.Errorf("Snapshots() = %+v", snaps)
	}
}

func TestRiverbankApp_ServeListener(t *testing.T) {
	a := newTestApp(t, newTestConfig(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeListener() did not return after cancel")
	}
}

func TestRiverbankApp_RevealOrigin(t *testing.T) {
	ctx := context.Background()
	noPassphrase := func() (string, error) { return "", errors.New("should not be asked") }

	t.Run("plain origin", func(t *testing.T) {
		a := newTestApp(t, newTestConfig(t))
		res, err := a.service.Throw(ctx, riverbank.ThrowRequest{Message: "nothing to hide in here", Origin: "198.51.100.8"})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}

		got, err := a.RevealOrigin(ctx, res.Bottle.ID, noPassphrase)
		if err != nil || got != "198.51.100.8" {
			t.Errorf("RevealOrigin() = %q, %v", got, err)
		}
	})

	t.Run("unknown bottle", func(t *testing.T) {
		a := newTestApp(t, newTestConfig(t))
		if _, err := a.RevealOrigin(ctx, "missing", noPassphrase); !errors.Is(err, riverbank.ErrNotFound) {
			t.Errorf("RevealOrigin() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("sealed origin", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Sealing.Type = "age"
		if err := encryption.NewAgeKeys(cfg.Sealing).Setup("river secret"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		a := newTestApp(t, cfg)

		res, err := a.service.Throw(ctx, riverbank.ThrowRequest{Message: "sealed away from prying eyes", Origin: "203.0.113.99"})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		stored, _ := a.db.FindBottle(ctx, res.Bottle.ID)
		if !encryption.IsSealed(stored.OriginAddress) {
			t.Fatalf("stored origin %q is not sealed", stored.OriginAddress)
		}

		got, err := a.RevealOrigin(ctx, res.Bottle.ID, func() (string, error) { return "river secret", nil })
		if err != nil || got != "203.0.113.99" {
			t.Errorf("RevealOrigin() = %q, %v", got, err)
		}

		if _, err := a.RevealOrigin(ctx, res.Bottle.ID, func() (string, error) { return "wrong", nil }); err == nil {
			t.Error("RevealOrigin() with wrong passphrase should fail")
		}
	})
}
