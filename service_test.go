package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cyberherd-messaging/internal/compose"
	"cyberherd-messaging/internal/event"
	"cyberherd-messaging/internal/templates"
)

const (
	testPrivkey = "edc90d06fee17615229c8526dc005d959e4af3bdc0b48c5776c951bcafedec85"
	testPubkey  = "bbde6a0e8847e1cdb2ba5ec021cc949eb3cef125b8304a748fe11c0407990eec"
)

func testMessenger(t *testing.T) (*Messenger, *MemoryStore) {
	t.Helper()
	cfg := &Config{
		StoreBackend:   "memory",
		Relays:         []string{}, // no network in tests
		PublishTimeout: time.Second,
	}
	store := NewMemoryStore()
	m := NewMessenger(cfg, store, NewPublisher(cfg.PublishTimeout), NewHub())
	return m, store
}

func TestPublishDisabledSkipsSigning(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)

	if err := m.SetPublishingEnabled(ctx, false); err != nil {
		t.Fatalf("SetPublishingEnabled failed: %v", err)
	}

	// No signing key stored: a disabled gate must still report success
	outcome, err := m.PublishNote(ctx, "admin", "quiet note", PublishOptions{})
	if err != nil {
		t.Fatalf("PublishNote failed: %v", err)
	}
	if !outcome.Published || !outcome.Skipped {
		t.Errorf("outcome = %+v, want published and skipped", outcome)
	}
	if outcome.EventID != "" {
		t.Errorf("no event should exist when skipped, got %s", outcome.EventID)
	}
}

func TestPublishWithoutKey(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)

	_, err := m.PublishNote(ctx, "admin", "hello", PublishOptions{})
	if !errors.Is(err, ErrNoSigningKey) {
		t.Errorf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestPublishNoteBuildsEvent(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)

	if err := m.SetPrivateKey(ctx, "admin", testPrivkey); err != nil {
		t.Fatalf("SetPrivateKey failed: %v", err)
	}

	outcome, err := m.PublishNote(ctx, "admin", "hello herd", PublishOptions{})
	if err != nil {
		t.Fatalf("PublishNote failed: %v", err)
	}
	// Zero relays configured: the event is built and signed but nothing
	// accepts it.
	if outcome.Published {
		t.Error("no relays should mean not published")
	}
	if len(outcome.EventID) != 64 {
		t.Errorf("event id = %q", outcome.EventID)
	}
	if outcome.Kind != event.KindNote {
		t.Errorf("kind = %d, want %d", outcome.Kind, event.KindNote)
	}
}

func TestPublishNoteInfersChatReplyKind(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)
	m.SetPrivateKey(ctx, "admin", testPrivkey)

	outcome, err := m.PublishNote(ctx, "admin", "hi chat", PublishOptions{
		ChatEventID: strings.Repeat("ab", 32),
		Coordinate:  "30311:" + strings.Repeat("cd", 32) + ":stream",
	})
	if err != nil {
		t.Fatalf("PublishNote failed: %v", err)
	}
	if outcome.Kind != event.KindChatReply {
		t.Errorf("kind = %d, want %d", outcome.Kind, event.KindChatReply)
	}
}

func TestSetPrivateKeyNormalizes(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)

	if err := m.SetPrivateKey(ctx, "admin", "0x"+strings.ToUpper(testPrivkey)); err != nil {
		t.Fatalf("SetPrivateKey failed: %v", err)
	}
	stored, ok, _ := store.GetSetting(ctx, "admin", settingPrivateKey)
	if !ok || stored != testPrivkey {
		t.Errorf("stored key = %q, want normalized hex", stored)
	}
	if !m.HasPrivateKey(ctx, "admin") {
		t.Error("HasPrivateKey should be true")
	}

	if err := m.ClearPrivateKey(ctx, "admin"); err != nil {
		t.Fatalf("ClearPrivateKey failed: %v", err)
	}
	if m.HasPrivateKey(ctx, "admin") {
		t.Error("HasPrivateKey should be false after clear")
	}
}

func TestSetPrivateKeyRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)
	err := m.SetPrivateKey(ctx, "admin", "not a key")
	if err == nil {
		t.Fatal("expected failure")
	}
	if strings.Contains(err.Error(), "not a key") {
		t.Errorf("error echoes input: %v", err)
	}
}

func TestPublishingEnabledDefaultsOn(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)

	if !m.PublishingEnabled(ctx) {
		t.Error("publishing should default to enabled")
	}

	for _, v := range []string{"0", "false", "no", "off", "OFF"} {
		store.SetSetting(ctx, "", settingPublishingEnabled, v)
		if m.PublishingEnabled(ctx) {
			t.Errorf("value %q should disable publishing", v)
		}
	}
	store.SetSetting(ctx, "", settingPublishingEnabled, "1")
	if !m.PublishingEnabled(ctx) {
		t.Error("value 1 should enable publishing")
	}
}

func TestWithEffectiveRelayPrecedence(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)
	m.cfg.DefaultReplyRelay = "wss://config.example"

	// Request hint wins over everything
	opts := m.withEffectiveRelay(ctx, PublishOptions{ReplyRelay: "wss://request.example"}, "wss://template.example")
	if opts.ReplyRelay != "wss://request.example" {
		t.Errorf("request hint should win, got %q", opts.ReplyRelay)
	}

	// Template hint next, normalized from https
	opts = m.withEffectiveRelay(ctx, PublishOptions{}, "https://template.example")
	if opts.ReplyRelay != "wss://template.example" {
		t.Errorf("template hint should win, got %q", opts.ReplyRelay)
	}

	// Stored default next
	store.SetSetting(ctx, "", settingReplyRelay, "wss://stored.example")
	opts = m.withEffectiveRelay(ctx, PublishOptions{}, "")
	if opts.ReplyRelay != "wss://stored.example" {
		t.Errorf("stored default should win, got %q", opts.ReplyRelay)
	}

	// Config default last
	store.DeleteSetting(ctx, "", settingReplyRelay)
	opts = m.withEffectiveRelay(ctx, PublishOptions{}, "")
	if opts.ReplyRelay != "wss://config.example" {
		t.Errorf("config default expected, got %q", opts.ReplyRelay)
	}
}

func TestComposeEventBroadcastsDespitePublishFailure(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)
	if err := templates.SeedDefaults(ctx, store); err != nil {
		t.Fatalf("SeedDefaults failed: %v", err)
	}

	// No signing key stored: the signed channel must fail while the
	// websocket channel still goes out.
	before := broadcastsTotal.Load()
	bundle, out, err := m.ComposeEvent(ctx, "admin", "overlay", compose.EventCyberHerd, compose.Params{
		Member:         compose.Person{DisplayName: "Alice"},
		Amount:         100,
		SpotsRemaining: 2,
	}, PublishOptions{})
	if err != nil {
		t.Fatalf("ComposeEvent failed: %v", err)
	}

	if bundle == nil || bundle.WebsocketContent == "" {
		t.Fatal("bundle should be built despite the signed-channel failure")
	}
	if out.Publish == nil || out.Publish.Published {
		t.Errorf("signed channel should report failure, got %+v", out.Publish)
	}
	if out.PublishError == "" {
		t.Error("signed-channel error should be surfaced in the outcome")
	}
	if !out.Broadcast {
		t.Error("broadcast should be attempted independently")
	}
	if got := broadcastsTotal.Load(); got != before+1 {
		t.Errorf("broadcast was never attempted: counter %d, want %d", got, before+1)
	}
}

func TestComposeEventBuildFailureSkipsBothChannels(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)

	before := broadcastsTotal.Load()
	_, _, err := m.ComposeEvent(ctx, "admin", "overlay", "goat_rave", compose.Params{}, PublishOptions{})
	if !errors.Is(err, compose.ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
	if got := broadcastsTotal.Load(); got != before {
		t.Errorf("nothing should broadcast when the bundle cannot be built")
	}
}

func TestRenderTemplatePlain(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)
	store.Put(ctx, templates.Template{
		Owner: "", Category: "greeting", Key: "0",
		Content: "Hello {name}, welcome!",
	})

	rendered, err := m.RenderTemplate(ctx, "admin", "greeting", "0", map[string]string{"name": "Eve"})
	if err != nil {
		t.Fatalf("RenderTemplate failed: %v", err)
	}
	if rendered.NostrContent != "Hello Eve, welcome!" {
		t.Errorf("nostr content = %q", rendered.NostrContent)
	}
	if rendered.NostrContent != rendered.WebsocketContent {
		t.Error("channels should match without goat mentions")
	}
	if len(rendered.GoatPubkeys) != 0 {
		t.Errorf("no goats expected, got %v", rendered.GoatPubkeys)
	}
}

func TestRenderTemplateGoatMentions(t *testing.T) {
	ctx := context.Background()
	m, store := testMessenger(t)
	store.Put(ctx, templates.Template{
		Owner: "", Category: "feeder", Key: "0",
		Content: "{goat_name} ran to the feeder!",
	})

	rendered, err := m.RenderTemplate(ctx, "admin", "feeder", "0", nil)
	if err != nil {
		t.Fatalf("RenderTemplate failed: %v", err)
	}
	if !strings.Contains(rendered.NostrContent, "nostr:nprofile1") {
		t.Errorf("nostr side should mention goats by profile ref: %q", rendered.NostrContent)
	}
	if strings.Contains(rendered.WebsocketContent, "nprofile1") {
		t.Errorf("websocket side should use plain names: %q", rendered.WebsocketContent)
	}
	if len(rendered.GoatPubkeys) == 0 {
		t.Error("goat pubkeys should be surfaced for p tags")
	}
	if len(rendered.GoatData) != len(rendered.GoatPubkeys) {
		t.Errorf("goat data/pubkey mismatch: %d vs %d", len(rendered.GoatData), len(rendered.GoatPubkeys))
	}
}

func TestRenderTemplateNotFound(t *testing.T) {
	ctx := context.Background()
	m, _ := testMessenger(t)
	if _, err := m.RenderTemplate(ctx, "admin", "nope", "0", nil); !errors.Is(err, templates.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestMergePubkeys(t *testing.T) {
	merged := mergePubkeys([]string{"aa", "bb"}, []string{"bb", "cc"})
	want := []string{"aa", "bb", "cc"}
	if len(merged) != len(want) {
		t.Fatalf("merged = %v", merged)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Errorf("merged[%d] = %q, want %q", i, merged[i], want[i])
		}
	}

	if got := mergePubkeys(nil, nil); len(got) != 0 {
		t.Errorf("empty merge = %v", got)
	}
}
