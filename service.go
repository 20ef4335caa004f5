package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"cyberherd-messaging/internal/compose"
	"cyberherd-messaging/internal/event"
	"cyberherd-messaging/internal/herd"
	"cyberherd-messaging/internal/keys"
	"cyberherd-messaging/internal/templates"
	"cyberherd-messaging/internal/thread"
)

// ErrNoSigningKey means the owner has no stored private key.
var ErrNoSigningKey = errors.New("no stored signing key")

// Messenger ties the engine together: templates in, signed events and
// websocket broadcasts out.
type Messenger struct {
	cfg      *Config
	store    Store
	pub      *Publisher
	hub      *Hub
	composer *compose.Composer
	roster   []herd.Goat

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewMessenger(cfg *Config, store Store, pub *Publisher, hub *Hub) *Messenger {
	now := time.Now().UnixNano()
	return &Messenger{
		cfg:      cfg,
		store:    store,
		pub:      pub,
		hub:      hub,
		composer: compose.New(store, "", herd.DefaultRoster(), rand.New(rand.NewSource(now))),
		roster:   herd.DefaultRoster(),
		rng:      rand.New(rand.NewSource(now + 1)),
	}
}

func (m *Messenger) pickGoats() []herd.Goat {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return herd.PickRandom(m.rng, m.roster)
}

// PublishOptions carries the threading context of one publish call.
type PublishOptions struct {
	ETags       []string
	PTags       []string
	ReplyRelay  string
	ChatEventID string // replied-to event inside a live activity
	Coordinate  string // 30311 activity coordinate
}

// PublishOutcome reports what happened. Published is true when at least
// one relay accepted the event, or when publishing is disabled and the
// note was deliberately not sent.
type PublishOutcome struct {
	Published bool             `json:"published"`
	Skipped   bool             `json:"skipped,omitempty"` // publishing disabled
	EventID   string           `json:"event_id,omitempty"`
	Kind      int              `json:"kind,omitempty"`
	Relays    []RelayResult    `json:"relays,omitempty"`
	Warnings  []thread.Warning `json:"-"`
}

// PublishNote signs content as a note threaded per opts and sends it to
// the configured relays.
func (m *Messenger) PublishNote(ctx context.Context, owner, content string, opts PublishOptions) (*PublishOutcome, error) {
	log := LoggerFromContext(ctx)

	enabled, err := m.publishingEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		log.Info("nostr publishing disabled, skipping note")
		return &PublishOutcome{Published: true, Skipped: true}, nil
	}

	material, err := m.signingMaterial(ctx, owner)
	if err != nil {
		return nil, err
	}

	tags, warnings := thread.Resolve(thread.Context{
		EventRefs:    opts.ETags,
		Participants: opts.PTags,
		ChatEventID:  opts.ChatEventID,
		Coordinate:   opts.Coordinate,
		RelayHint:    opts.ReplyRelay,
	}, m.cfg.HerdProfilePubkey)
	for _, w := range warnings {
		log.Debug("tag dropped", "warning", w.String())
	}

	kind := event.InferKind(tags)
	evt, err := event.Build(kind, content, tags, material, time.Now())
	if err != nil {
		return nil, err
	}

	results := m.pub.Publish(ctx, evt, m.cfg.Relays)
	published := false
	for _, r := range results {
		if r.OK {
			published = true
			break
		}
	}

	return &PublishOutcome{
		Published: published,
		EventID:   evt.ID,
		Kind:      evt.Kind,
		Relays:    results,
		Warnings:  warnings,
	}, nil
}

// RenderedTemplate is a template resolved and rendered for both
// channels. The channels differ only when goats are mentioned.
type RenderedTemplate struct {
	NostrContent     string
	WebsocketContent string
	ReplyRelay       string
	GoatData         []compose.GoatCard
	GoatPubkeys      []string
}

// RenderTemplate resolves (owner falling back to shared defaults),
// splits off any template relay hint and substitutes values. A
// {goat_name} placeholder triggers random goat selection: bech32
// profile references on the nostr side, plain names on the websocket
// side.
func (m *Messenger) RenderTemplate(ctx context.Context, owner, category, key string, values map[string]string) (*RenderedTemplate, error) {
	tpl, err := templates.Lookup(ctx, m.store, owner, category, key)
	if err != nil {
		return nil, err
	}
	parsed := templates.ParseContent(tpl.Content)

	out := &RenderedTemplate{ReplyRelay: parsed.ReplyRelay}

	nostrVals := values
	wsVals := values
	if strings.Contains(parsed.Content, "{goat_name}") {
		goats := m.pickGoats()
		mentions := make([]string, 0, len(goats))
		for _, g := range goats {
			mentions = append(mentions, herd.NormalizeProfileRef(g.Profile))
			out.GoatData = append(out.GoatData, compose.GoatCard{
				Name:     g.Name,
				ImageURL: "images/" + strings.ToLower(g.Name) + ".png",
			})
		}
		out.GoatPubkeys = herd.Pubkeys(goats)

		nostrVals = cloneValues(values)
		nostrVals["goat_name"] = herd.JoinWithAnd(mentions)
		wsVals = cloneValues(values)
		wsVals["goat_name"] = herd.JoinWithAnd(herd.Names(goats))
	}

	out.NostrContent = templates.Render(parsed.Content, nostrVals)
	out.WebsocketContent = templates.Render(parsed.Content, wsVals)
	return out, nil
}

// PublishTemplate publishes a stored template verbatim.
func (m *Messenger) PublishTemplate(ctx context.Context, owner, category, key string, opts PublishOptions) (*PublishOutcome, error) {
	rendered, err := m.RenderTemplate(ctx, owner, category, key, nil)
	if err != nil {
		return nil, err
	}
	opts = m.withEffectiveRelay(ctx, opts, rendered.ReplyRelay)
	opts.PTags = mergePubkeys(opts.PTags, rendered.GoatPubkeys)
	return m.PublishNote(ctx, owner, rendered.NostrContent, opts)
}

// PublishTemplateWithValues renders a template with substitutions and
// publishes the nostr side.
func (m *Messenger) PublishTemplateWithValues(ctx context.Context, owner, category, key string, values map[string]string, opts PublishOptions) (*PublishOutcome, *RenderedTemplate, error) {
	rendered, err := m.RenderTemplate(ctx, owner, category, key, values)
	if err != nil {
		return nil, nil, err
	}
	opts = m.withEffectiveRelay(ctx, opts, rendered.ReplyRelay)
	opts.PTags = mergePubkeys(opts.PTags, rendered.GoatPubkeys)
	outcome, err := m.PublishNote(ctx, owner, rendered.NostrContent, opts)
	if err != nil {
		return nil, rendered, err
	}
	return outcome, rendered, nil
}

// ComposeOutcome reports both channel attempts of a composed event.
// The channels are independent: a signed-channel failure is recorded in
// PublishError while the broadcast still goes out.
type ComposeOutcome struct {
	Publish          *PublishOutcome `json:"publish"`
	PublishError     string          `json:"publish_error,omitempty"`
	Broadcast        bool            `json:"broadcast"`
	BroadcastClients int             `json:"broadcast_clients"`
}

// ComposeEvent builds the dual-channel bundle for a herd event, then
// attempts the nostr publish and the websocket broadcast independently.
// Only a bundle build failure returns an error; missing or unusable
// signing material aborts the signed channel alone.
func (m *Messenger) ComposeEvent(ctx context.Context, owner, topic, eventType string, params compose.Params, opts PublishOptions) (*compose.Bundle, *ComposeOutcome, error) {
	params.IsChatReply = opts.ChatEventID != "" && opts.Coordinate != ""
	bundle, err := m.composer.Build(ctx, eventType, params)
	if err != nil {
		return nil, nil, err
	}

	opts = m.withEffectiveRelay(ctx, opts, bundle.ReplyRelay)
	opts.PTags = mergePubkeys(opts.PTags, bundle.GoatPubkeys)

	out := &ComposeOutcome{}
	outcome, pubErr := m.PublishNote(ctx, owner, bundle.NostrContent, opts)
	if pubErr != nil {
		// Normalize errors never echo key material, safe to surface
		out.Publish = &PublishOutcome{}
		out.PublishError = pubErr.Error()
		LoggerFromContext(ctx).Warn("signed channel failed, broadcasting anyway",
			"event_type", eventType, "error", pubErr)
	} else {
		out.Publish = outcome
	}

	if topic != "" {
		payload, _ := marshalGoatData(bundle.GoatData)
		out.Broadcast = true
		out.BroadcastClients = m.hub.Broadcast(ctx, topic, BroadcastMessage{
			Category: eventType,
			Text:     bundle.WebsocketContent,
			Payload:  payload,
		})
	}
	return bundle, out, nil
}

// Broadcast sends an arbitrary message to websocket clients on topic.
func (m *Messenger) Broadcast(ctx context.Context, topic string, msg BroadcastMessage) int {
	return m.hub.Broadcast(ctx, topic, msg)
}

// SetPrivateKey normalizes and stores the owner's signing key. The raw
// input never reaches the log on failure.
func (m *Messenger) SetPrivateKey(ctx context.Context, owner, raw string) error {
	material, err := keys.Normalize(raw)
	if err != nil {
		return err
	}
	return m.store.SetSetting(ctx, owner, settingPrivateKey, material.SecretHex())
}

// ClearPrivateKey removes the owner's stored signing key.
func (m *Messenger) ClearPrivateKey(ctx context.Context, owner string) error {
	return m.store.DeleteSetting(ctx, owner, settingPrivateKey)
}

// HasPrivateKey reports whether the owner has a stored signing key.
func (m *Messenger) HasPrivateKey(ctx context.Context, owner string) bool {
	v, ok, err := m.store.GetSetting(ctx, owner, settingPrivateKey)
	return err == nil && ok && v != ""
}

// SetPublishingEnabled flips the global publish gate.
func (m *Messenger) SetPublishingEnabled(ctx context.Context, enabled bool) error {
	v := "1"
	if !enabled {
		v = "0"
	}
	return m.store.SetSetting(ctx, "", settingPublishingEnabled, v)
}

// PublishingEnabled reads the global publish gate, defaulting to on.
func (m *Messenger) PublishingEnabled(ctx context.Context) bool {
	enabled, err := m.publishingEnabled(ctx)
	return err == nil && enabled
}

func (m *Messenger) publishingEnabled(ctx context.Context) (bool, error) {
	v, ok, err := m.store.GetSetting(ctx, "", settingPublishingEnabled)
	if err != nil {
		return false, fmt.Errorf("read publish setting: %w", err)
	}
	if !ok {
		return true, nil
	}
	switch strings.ToLower(v) {
	case "0", "false", "no", "off":
		return false, nil
	default:
		return true, nil
	}
}

func (m *Messenger) signingMaterial(ctx context.Context, owner string) (*keys.SigningMaterial, error) {
	stored, ok, err := m.store.GetSetting(ctx, owner, settingPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	if !ok || stored == "" {
		return nil, ErrNoSigningKey
	}
	return keys.Normalize(stored)
}

// withEffectiveRelay resolves the relay hint precedence: explicit
// request hint, then the template's hint, then the stored default, then
// the configured default.
func (m *Messenger) withEffectiveRelay(ctx context.Context, opts PublishOptions, templateRelay string) PublishOptions {
	if opts.ReplyRelay != "" {
		return opts
	}
	if hint := thread.NormalizeRelayHint(templateRelay); hint != "" {
		opts.ReplyRelay = hint
		return opts
	}
	if stored, ok, err := m.store.GetSetting(ctx, "", settingReplyRelay); err == nil && ok {
		if hint := thread.NormalizeRelayHint(stored); hint != "" {
			opts.ReplyRelay = hint
			return opts
		}
	}
	opts.ReplyRelay = m.cfg.DefaultReplyRelay
	return opts
}

func mergePubkeys(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, pk := range existing {
		seen[strings.ToLower(strings.TrimSpace(pk))] = true
	}
	merged := append([]string{}, existing...)
	for _, pk := range extra {
		if !seen[strings.ToLower(pk)] {
			seen[strings.ToLower(pk)] = true
			merged = append(merged, pk)
		}
	}
	return merged
}

func marshalGoatData(cards []compose.GoatCard) (json.RawMessage, error) {
	if len(cards) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(struct {
		Goats []compose.GoatCard `json:"goats"`
	}{cards})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func cloneValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	return out
}
