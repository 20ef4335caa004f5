package compose

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"cyberherd-messaging/internal/herd"
	"cyberherd-messaging/internal/templates"
)

const testPubkey = "bbde6a0e8847e1cdb2ba5ec021cc949eb3cef125b8304a748fe11c0407990eec"

type fakeStore struct {
	templates map[[3]string]templates.Template
}

func (s *fakeStore) Get(_ context.Context, owner, category, key string) (*templates.Template, error) {
	tpl, ok := s.templates[[3]string{owner, category, key}]
	if !ok {
		return nil, templates.ErrTemplateNotFound
	}
	return &tpl, nil
}

func (s *fakeStore) List(_ context.Context, owner, category string) ([]templates.Template, error) {
	var out []templates.Template
	for k, tpl := range s.templates {
		if k[0] == owner && k[1] == category {
			out = append(out, tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *fakeStore) Categories(_ context.Context, owner string) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) Put(_ context.Context, tpl templates.Template) error {
	s.templates[[3]string{tpl.Owner, tpl.Category, tpl.Key}] = tpl
	return nil
}

func (s *fakeStore) Delete(context.Context, string, string, string) error { return nil }

func (s *fakeStore) DeleteCategory(context.Context, string, string) (int, error) { return 0, nil }

func (s *fakeStore) RenameCategory(context.Context, string, string, string) (int, error) {
	return 0, nil
}

// testComposer uses single-template categories so the rendered text is
// deterministic regardless of the rng.
func testComposer() *Composer {
	store := &fakeStore{templates: make(map[[3]string]templates.Template)}
	seed := map[string]string{
		templates.CategoryCyberHerdJoin:      "Welcome {name}!{thanks_part}",
		templates.CategoryThankYouVariations: " Thanks for {new_amount} sats.",
		templates.CategoryVariations:         "{difference} sats to go.",
		templates.CategorySatsReceived:       "{goat_name} got treats. Total {new_amount}. {difference_message}",
		templates.CategoryFeederTrigger:      "Feeder fired at {new_amount} sats. {difference_message}",
		templates.CategoryCyberHerdTreats:    "{name} sent {new_amount} in treats.",
		templates.CategoryHeadbuttInfo:       "Bring {required_sats} sats to displace {victim_name}.",
		templates.CategoryHeadbuttSuccess:    "{attacker_name} ({attacker_amount}) bumped {victim_name} ({victim_amount}).",
		templates.CategoryHeadbuttFailure:    "{attacker_name} brought {attacker_amount} but needed {required_sats}.",
		templates.CategoryKind6Repost:        "{name} joined via repost.",
		templates.CategoryKind7Reaction:      "{name} joined via reaction.",
		templates.CategoryKind6HeadbuttFail:  "{name} reposted but {required_sats} sats are needed.",
		templates.CategoryZapperDisplaces6:   "{attacker_name} zapped past {victim_name}.",
		templates.CategoryMemberIncrease:     "{member_name} added {increase_amount}, now {new_total}.",
		templates.CategoryDailyReset:         "Herd reset for the day." + promoLink + "See you tomorrow.",
		templates.CategoryFeedingRegular:     "{display_name} fed the goats with {new_amount} sats.",
	}
	for category, content := range seed {
		store.templates[[3]string{"", category, "0"}] = templates.Template{
			Category: category, Key: "0", Content: content,
		}
	}
	return New(store, "tester", herd.DefaultRoster(), rand.New(rand.NewSource(1)))
}

func TestBuildJoinDualRendering(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventCyberHerd, Params{
		Member:         Person{DisplayName: "Alice", Pubkey: testPubkey},
		Amount:         100,
		SpotsRemaining: 3,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(bundle.NostrContent, "nostr:npub1") {
		t.Errorf("nostr channel should embed an npub: %q", bundle.NostrContent)
	}
	if strings.Contains(bundle.NostrContent, "Alice") {
		t.Errorf("nostr channel should not use the display name: %q", bundle.NostrContent)
	}
	if !strings.Contains(bundle.WebsocketContent, "Alice") {
		t.Errorf("websocket channel should use the display name: %q", bundle.WebsocketContent)
	}
	if strings.Contains(bundle.WebsocketContent, "npub1") {
		t.Errorf("websocket channel should not embed bech32: %q", bundle.WebsocketContent)
	}

	// Same facts on both sides
	for _, content := range []string{bundle.NostrContent, bundle.WebsocketContent} {
		if !strings.Contains(content, "Thanks for 100 sats.") {
			t.Errorf("missing thanks fragment: %q", content)
		}
		if !strings.Contains(content, "3 more spots available") {
			t.Errorf("missing spots info: %q", content)
		}
	}
	if bundle.SpotsRemaining != 3 {
		t.Errorf("SpotsRemaining = %d", bundle.SpotsRemaining)
	}
}

func TestBuildJoinNoThanksWithoutAmount(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventNewMember, Params{
		Member:         Person{DisplayName: "Bob"},
		SpotsRemaining: 2,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Contains(bundle.WebsocketContent, "Thanks") {
		t.Errorf("no thanks fragment expected for zero amount: %q", bundle.WebsocketContent)
	}
}

func TestSpotsAndHeadbutt(t *testing.T) {
	c := testComposer()
	ctx := context.Background()

	spots, headbutt := c.spotsAndHeadbutt(ctx, 5, nil)
	if spots != "⚡ 5 more spots available. ⚡" {
		t.Errorf("spots = %q", spots)
	}
	if headbutt != "" {
		t.Errorf("headbutt = %q", headbutt)
	}

	spots, _ = c.spotsAndHeadbutt(ctx, 1, nil)
	if spots != "⚡ 1 more spot available. ⚡" {
		t.Errorf("singular spots = %q", spots)
	}

	spots, headbutt = c.spotsAndHeadbutt(ctx, 0, &HeadbuttStakes{RequiredSats: 50, VictimName: "Carol"})
	if spots != "" {
		t.Errorf("full herd should render no spots line, got %q", spots)
	}
	if !strings.Contains(headbutt, "50") || !strings.Contains(headbutt, "Carol") {
		t.Errorf("headbutt text missing stakes: %q", headbutt)
	}
}

func TestBuildPaymentGoatMentions(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventSatsReceived, Params{
		NewAmount:  250,
		Difference: 750,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(bundle.NostrContent, "nostr:nprofile1") {
		t.Errorf("nostr channel should mention goats by nprofile: %q", bundle.NostrContent)
	}
	if strings.Contains(bundle.WebsocketContent, "nprofile1") {
		t.Errorf("websocket channel should use goat names: %q", bundle.WebsocketContent)
	}

	rosterNames := herd.Names(herd.DefaultRoster())
	var named bool
	for _, name := range rosterNames {
		if strings.Contains(bundle.WebsocketContent, name) {
			named = true
			break
		}
	}
	if !named {
		t.Errorf("websocket channel names no goat: %q", bundle.WebsocketContent)
	}

	if len(bundle.GoatPubkeys) == 0 {
		t.Error("goat mentions should surface pubkeys for p tags")
	}
	if len(bundle.GoatData) != len(bundle.GoatPubkeys) {
		t.Errorf("goat data and pubkeys out of step: %d vs %d",
			len(bundle.GoatData), len(bundle.GoatPubkeys))
	}
	for _, card := range bundle.GoatData {
		if !strings.HasPrefix(card.ImageURL, "images/") || !strings.HasSuffix(card.ImageURL, ".png") {
			t.Errorf("unexpected image url %q", card.ImageURL)
		}
	}

	for _, content := range []string{bundle.NostrContent, bundle.WebsocketContent} {
		if !strings.Contains(content, "Total 250.") {
			t.Errorf("missing amount: %q", content)
		}
		if !strings.Contains(content, "750 sats to go.") {
			t.Errorf("missing difference fragment: %q", content)
		}
	}
}

func TestBuildPaymentBolt12Prefix(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventFeederTriggerBolt12, Params{NewAmount: 1000})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.HasPrefix(bundle.NostrContent, "⚡BOLT12 PAYMENT⚡ ") {
		t.Errorf("missing bolt12 prefix: %q", bundle.NostrContent)
	}
	if !strings.HasPrefix(bundle.WebsocketContent, "⚡BOLT12 PAYMENT⚡ ") {
		t.Errorf("missing bolt12 prefix: %q", bundle.WebsocketContent)
	}
}

func TestBuildHeadbuttSuccess(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventHeadbuttSuccess, Params{
		Attacker:       Person{DisplayName: "Mallory", Pubkey: testPubkey},
		Victim:         Person{DisplayName: "Victor"},
		AttackerAmount: 300,
		VictimAmount:   200,
		NextHeadbutt:   &HeadbuttStakes{RequiredSats: 301, VictimName: "Mallory"},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(bundle.WebsocketContent, "Mallory (300) bumped Victor (200).") {
		t.Errorf("websocket content = %q", bundle.WebsocketContent)
	}
	if !strings.Contains(bundle.NostrContent, "nostr:npub1") {
		t.Errorf("attacker should render as npub: %q", bundle.NostrContent)
	}
	if !strings.Contains(bundle.HeadbuttText, "301") {
		t.Errorf("next stakes missing: %q", bundle.HeadbuttText)
	}
}

func TestBuildHeadbuttFailureAlwaysHasRequiredSats(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventHeadbuttFailure, Params{
		Attacker:       Person{DisplayName: "Mallory"},
		AttackerAmount: 100,
		RequiredSats:   250,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(bundle.WebsocketContent, "needed 250") {
		t.Errorf("required sats not rendered: %q", bundle.WebsocketContent)
	}
}

func TestBuildEngagementVariantNamesMember(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventKind6HeadbuttFailure, Params{
		Member:       Person{DisplayName: "Peggy"},
		RequiredSats: 77,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(bundle.WebsocketContent, "Peggy") {
		t.Errorf("member name missing: %q", bundle.WebsocketContent)
	}
	if !strings.Contains(bundle.WebsocketContent, "77") {
		t.Errorf("required sats missing: %q", bundle.WebsocketContent)
	}
}

func TestBuildPlainStripsPromoForChatReplies(t *testing.T) {
	c := testComposer()
	ctx := context.Background()

	bundle, err := c.Build(ctx, EventDailyReset, Params{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(bundle.NostrContent, "lightning-goats.com") {
		t.Errorf("regular note should keep the promo link: %q", bundle.NostrContent)
	}

	bundle, err = c.Build(ctx, EventDailyReset, Params{IsChatReply: true})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Contains(bundle.NostrContent, "lightning-goats.com") {
		t.Errorf("chat reply should strip the promo link: %q", bundle.NostrContent)
	}
	if !strings.Contains(bundle.NostrContent, "See you tomorrow.") {
		t.Errorf("stripping removed surrounding text: %q", bundle.NostrContent)
	}
}

func TestBuildFeedingSameBothChannels(t *testing.T) {
	c := testComposer()
	bundle, err := c.Build(context.Background(), EventFeedingRegular, Params{
		Member:    Person{DisplayName: "Trent"},
		NewAmount: 42,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if bundle.NostrContent != bundle.WebsocketContent {
		t.Errorf("feeding messages should match:\n  nostr: %q\n  ws:    %q",
			bundle.NostrContent, bundle.WebsocketContent)
	}
	if !strings.Contains(bundle.NostrContent, "Trent") || !strings.Contains(bundle.NostrContent, "42") {
		t.Errorf("content = %q", bundle.NostrContent)
	}
}

func TestBuildUnknownEventType(t *testing.T) {
	c := testComposer()
	if _, err := c.Build(context.Background(), "goat_rave", Params{}); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestBuildMissingCategory(t *testing.T) {
	store := &fakeStore{templates: make(map[[3]string]templates.Template)}
	c := New(store, "tester", nil, rand.New(rand.NewSource(1)))
	if _, err := c.Build(context.Background(), EventCyberHerd, Params{}); !errors.Is(err, templates.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestNostrNamePrecedence(t *testing.T) {
	c := testComposer()
	eventID := "5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36"

	cases := []struct {
		name   string
		person Person
		prefix string
	}{
		{"pubkey wins", Person{Pubkey: testPubkey, Nprofile: "nprofile1xyz", DisplayName: "X"}, "nostr:npub1"},
		{"nprofile next", Person{Nprofile: "nprofile1xyz", DisplayName: "X"}, "nostr:nprofile1"},
		{"event id next", Person{EventID: eventID, DisplayName: "X"}, "nostr:note1"},
		{"display name last", Person{DisplayName: "X"}, "X"},
		{"anon fallback", Person{}, "anon"},
	}
	for _, tc := range cases {
		got := c.nostrName(tc.person)
		if !strings.HasPrefix(got, tc.prefix) {
			t.Errorf("%s: nostrName = %q, want prefix %q", tc.name, got, tc.prefix)
		}
	}
}

func TestTemplateRelayHintCarried(t *testing.T) {
	store := &fakeStore{templates: make(map[[3]string]templates.Template)}
	store.templates[[3]string{"", templates.CategoryInterfaceInfo, "0"}] = templates.Template{
		Category: templates.CategoryInterfaceInfo,
		Key:      "0",
		Content:  `{"content":"Feeder status is on the overlay.","reply_relay":"wss://relay.damus.io"}`,
	}
	c := New(store, "tester", nil, rand.New(rand.NewSource(1)))

	bundle, err := c.Build(context.Background(), EventInterfaceInfo, Params{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if bundle.ReplyRelay != "wss://relay.damus.io" {
		t.Errorf("ReplyRelay = %q", bundle.ReplyRelay)
	}
	if bundle.NostrContent != "Feeder status is on the overlay." {
		t.Errorf("content = %q", bundle.NostrContent)
	}
}
