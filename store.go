package main

import (
	"context"

	"cyberherd-messaging/internal/templates"
)

// Setting names used by the service. The private key is stored
// normalized to hex and must never appear in logs or error messages.
const (
	settingPublishingEnabled = "nostr_publishing_enabled"
	settingPrivateKey        = "nostr_private_key"
	settingReplyRelay        = "default_reply_relay"
)

// SettingsStore persists per-owner string settings. The empty owner
// holds global settings.
type SettingsStore interface {
	GetSetting(ctx context.Context, owner, name string) (string, bool, error)
	SetSetting(ctx context.Context, owner, name, value string) error
	DeleteSetting(ctx context.Context, owner, name string) error
}

// Store is the full persistence surface: templates plus settings.
type Store interface {
	templates.Store
	SettingsStore
	Close() error
}

// NewStore builds the configured backend.
func NewStore(cfg *Config) (Store, error) {
	if cfg.StoreBackend == "redis" {
		return NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
	}
	return NewMemoryStore(), nil
}
