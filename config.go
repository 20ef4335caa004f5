package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from the environment at startup.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AdminKey authorizes write endpoints via the X-Api-Key header.
	// Empty disables all write endpoints.
	AdminKey string `env:"ADMIN_KEY"`

	// StoreBackend selects template/settings persistence: memory or redis.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix  string `env:"REDIS_PREFIX" envDefault:"cyberherd:"`

	// Relays receives every published event.
	Relays []string `env:"NOSTR_RELAYS" envSeparator:"," envDefault:"wss://relay.damus.io,wss://relay.primal.net,wss://nos.lol"`

	// HerdProfilePubkey is p-tagged on every threaded reply so the herd
	// profile gets notified. Hex, may be empty.
	HerdProfilePubkey string `env:"HERD_PROFILE_PUBKEY"`

	// DefaultReplyRelay is the relay hint used when neither the request
	// nor the template carries one.
	DefaultReplyRelay string `env:"DEFAULT_REPLY_RELAY"`

	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
}

// LoadConfig parses configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}
