package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/ibwire/internal/protocol/session"
	"github.com/danmuck/ibwire/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ibwire.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigShippedFile(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Target.Host != "127.0.0.1" || cfg.Target.Port != 4002 {
		t.Fatalf("unexpected target: %+v", cfg.Target)
	}
	if cfg.Target.ClientID != 17 {
		t.Fatalf("unexpected client id: %d", cfg.Target.ClientID)
	}
	if cfg.Session.ConnectTimeout != 3*time.Second {
		t.Fatalf("unexpected connect timeout: %v", cfg.Session.ConnectTimeout)
	}
	if cfg.Session.HandshakeTimeout != 4*time.Second {
		t.Fatalf("unexpected handshake timeout: %v", cfg.Session.HandshakeTimeout)
	}
	if cfg.Session.RequestTimeout != 20*time.Second {
		t.Fatalf("unexpected request timeout: %v", cfg.Session.RequestTimeout)
	}
	if cfg.Session.WriteTimeout != session.DefaultConfig().WriteTimeout {
		t.Fatalf("write timeout should keep its default: %v", cfg.Session.WriteTimeout)
	}
	if cfg.Session.FirstRequestID != 1000 {
		t.Fatalf("unexpected first request id: %d", cfg.Session.FirstRequestID)
	}
	if cfg.Session.Backoff.InitialDelay != 500*time.Millisecond || cfg.Session.Backoff.MaxDelay != time.Minute {
		t.Fatalf("unexpected backoff: %+v", cfg.Session.Backoff)
	}
	if cfg.Session.Backoff.Jitter {
		t.Fatalf("expected jitter disabled")
	}
	if cfg.AdminListenAddr != "127.0.0.1:7400" {
		t.Fatalf("unexpected admin listen: %q", cfg.AdminListenAddr)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %+v", cfg.CORSOrigins)
	}
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig(writeConfig(t, "[gateway]\nport = 7497\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := defaultServiceConfig()
	if cfg.Target.Host != def.Target.Host || cfg.Target.Port != 7497 {
		t.Fatalf("unexpected target: %+v", cfg.Target)
	}
	if cfg.Session.MinVersion != session.ProtocolVersion || cfg.Session.MaxVersion != session.ProtocolVersion {
		t.Fatalf("unexpected version range: %d..%d", cfg.Session.MinVersion, cfg.Session.MaxVersion)
	}
	if !cfg.Session.Backoff.Jitter {
		t.Fatalf("expected default jitter")
	}
}

func TestLoadServiceConfigRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"port":     "[gateway]\nport = 70000\n",
		"duration": "[session]\nhandshake_timeout = \"soon\"\n",
		"backoff":  "[reconnect]\nmax_delay = \"1 minute\"\n",
		"syntax":   "[gateway\n",
	}
	for name, body := range cases {
		if _, err := loadServiceConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := loadServiceConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
