package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/ibwire/internal/gateway"
	"github.com/danmuck/ibwire/internal/protocol/session"
)

type fileConfig struct {
	Gateway struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		ClientID int    `toml:"client_id"`
	} `toml:"gateway"`
	Session struct {
		ConnectTimeout       string `toml:"connect_timeout"`
		HandshakeTimeout     string `toml:"handshake_timeout"`
		WriteTimeout         string `toml:"write_timeout"`
		RequestTimeout       string `toml:"request_timeout"`
		OptionalCapabilities string `toml:"optional_capabilities"`
		MaxPayloadBytes      uint32 `toml:"max_payload_bytes"`
		FirstRequestID       int64  `toml:"first_request_id"`
	} `toml:"session"`
	Reconnect struct {
		InitialDelay string  `toml:"initial_delay"`
		MaxDelay     string  `toml:"max_delay"`
		Multiplier   float64 `toml:"multiplier"`
		Jitter       bool    `toml:"jitter"`
		MaxAttempts  int     `toml:"max_attempts"`
	} `toml:"reconnect"`
	Admin struct {
		Listen      string   `toml:"listen"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"admin"`
}

type serviceConfig struct {
	Target          gateway.Target
	Session         session.Config
	AdminListenAddr string
	CORSOrigins     []string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Target:          gateway.Target{Host: "127.0.0.1", Port: 4002},
		Session:         session.DefaultConfig(),
		AdminListenAddr: "127.0.0.1:7400",
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load ibwire config: %w", err)
	}

	if meta.IsDefined("gateway", "host") {
		if host := strings.TrimSpace(raw.Gateway.Host); host != "" {
			cfg.Target.Host = host
		}
	}
	if meta.IsDefined("gateway", "port") {
		if raw.Gateway.Port <= 0 || raw.Gateway.Port > 65535 {
			return serviceConfig{}, fmt.Errorf("gateway.port out of range: %d", raw.Gateway.Port)
		}
		cfg.Target.Port = raw.Gateway.Port
	}
	if meta.IsDefined("gateway", "client_id") {
		cfg.Target.ClientID = raw.Gateway.ClientID
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.Session.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"handshake_timeout", raw.Session.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"write_timeout", raw.Session.WriteTimeout, &cfg.Session.WriteTimeout},
		{"request_timeout", raw.Session.RequestTimeout, &cfg.Session.RequestTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined("session", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse session.%s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("session", "optional_capabilities") {
		cfg.Session.OptionalCapabilities = strings.TrimSpace(raw.Session.OptionalCapabilities)
	}
	if meta.IsDefined("session", "max_payload_bytes") {
		cfg.Session.MaxPayloadBytes = raw.Session.MaxPayloadBytes
	}
	if meta.IsDefined("session", "first_request_id") {
		cfg.Session.FirstRequestID = raw.Session.FirstRequestID
	}

	if meta.IsDefined("reconnect", "initial_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconnect.InitialDelay))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse reconnect.initial_delay: %w", err)
		}
		cfg.Session.Backoff.InitialDelay = d
	}
	if meta.IsDefined("reconnect", "max_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconnect.MaxDelay))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse reconnect.max_delay: %w", err)
		}
		cfg.Session.Backoff.MaxDelay = d
	}
	if meta.IsDefined("reconnect", "multiplier") {
		cfg.Session.Backoff.Multiplier = raw.Reconnect.Multiplier
	}
	if meta.IsDefined("reconnect", "jitter") {
		cfg.Session.Backoff.Jitter = raw.Reconnect.Jitter
	}
	if meta.IsDefined("reconnect", "max_attempts") {
		cfg.Session.Backoff.MaxAttempts = raw.Reconnect.MaxAttempts
	}

	if meta.IsDefined("admin", "listen") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.Admin.Listen)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.Admin.CORSOrigins)
	}

	cfg.Session = cfg.Session.WithDefaults()
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
