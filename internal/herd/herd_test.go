package herd

import (
	"math/rand"
	"strings"
	"testing"

	"cyberherd-messaging/internal/nips"
)

func TestDefaultRosterConsistency(t *testing.T) {
	roster := DefaultRoster()
	if len(roster) == 0 {
		t.Fatal("empty roster")
	}

	seen := make(map[string]bool)
	for _, goat := range roster {
		if goat.Name == "" {
			t.Error("goat with empty name")
		}
		if seen[goat.Name] {
			t.Errorf("duplicate goat name %q", goat.Name)
		}
		seen[goat.Name] = true

		if !strings.HasPrefix(goat.Profile, "nostr:nprofile1") {
			t.Errorf("%s: profile ref %q lacks nostr:nprofile1 prefix", goat.Name, goat.Profile)
		}
		profile, err := nips.DecodeProfile(strings.TrimPrefix(goat.Profile, "nostr:"))
		if err != nil {
			t.Errorf("%s: profile does not decode: %v", goat.Name, err)
			continue
		}
		if profile.Pubkey != goat.Pubkey {
			t.Errorf("%s: profile pubkey %s does not match roster pubkey %s",
				goat.Name, profile.Pubkey, goat.Pubkey)
		}
	}
}

func TestPickRandom(t *testing.T) {
	roster := DefaultRoster()
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		picked := PickRandom(rng, roster)
		if len(picked) < 1 || len(picked) > len(roster) {
			t.Fatalf("trial %d: picked %d goats, want 1..%d", trial, len(picked), len(roster))
		}
		seen := make(map[string]bool)
		for _, goat := range picked {
			if seen[goat.Name] {
				t.Fatalf("trial %d: goat %q picked twice", trial, goat.Name)
			}
			seen[goat.Name] = true
		}
	}
}

func TestPickRandomEmptyRoster(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if picked := PickRandom(rng, nil); picked != nil {
		t.Errorf("expected nil for empty roster, got %v", picked)
	}
}

func TestNamesAndPubkeys(t *testing.T) {
	goats := DefaultRoster()[:2]
	names := Names(goats)
	pks := Pubkeys(goats)
	if len(names) != 2 || len(pks) != 2 {
		t.Fatalf("lengths: names %d, pubkeys %d", len(names), len(pks))
	}
	if names[0] != goats[0].Name || pks[1] != goats[1].Pubkey {
		t.Error("order not preserved")
	}
}

func TestJoinWithAnd(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"Dexter"}, "Dexter"},
		{[]string{"Dexter", "Rowan"}, "Dexter and Rowan"},
		{[]string{"Dexter", "Rowan", "Nova"}, "Dexter, Rowan and Nova"},
	}
	for _, tc := range cases {
		if got := JoinWithAnd(tc.in); got != tc.want {
			t.Errorf("JoinWithAnd(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeProfileRef(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"nprofile1abc", "nostr:nprofile1abc"},
		{"nostr:nprofile1abc", "nostr:nprofile1abc"},
		{"  nprofile1abc  ", "nostr:nprofile1abc"},
	}
	for _, tc := range cases {
		if got := NormalizeProfileRef(tc.in); got != tc.want {
			t.Errorf("NormalizeProfileRef(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProfileForPubkey(t *testing.T) {
	goat := DefaultRoster()[0]
	ref, err := ProfileForPubkey(goat.Pubkey, nil)
	if err != nil {
		t.Fatalf("ProfileForPubkey failed: %v", err)
	}
	if !strings.HasPrefix(ref, "nostr:nprofile1") {
		t.Errorf("unexpected ref %q", ref)
	}
	profile, err := nips.DecodeProfile(strings.TrimPrefix(ref, "nostr:"))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if profile.Pubkey != goat.Pubkey {
		t.Errorf("round trip pubkey mismatch: %s", profile.Pubkey)
	}
}
