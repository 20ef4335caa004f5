package nips

import (
	"errors"
	"strings"
	"testing"
)

const testPubkey = "bbde6a0e8847e1cdb2ba5ec021cc949eb3cef125b8304a748fe11c0407990eec"

func TestPubkeyRoundTrip(t *testing.T) {
	npub, err := EncodePubkey(testPubkey)
	if err != nil {
		t.Fatalf("EncodePubkey failed: %v", err)
	}
	if !strings.HasPrefix(npub, "npub1") {
		t.Errorf("expected npub1 prefix, got %s", npub)
	}
	t.Logf("npub: %s", npub)

	decoded, err := DecodePubkey(npub)
	if err != nil {
		t.Fatalf("DecodePubkey failed: %v", err)
	}
	if decoded != testPubkey {
		t.Errorf("round trip mismatch:\n  in:  %s\n  out: %s", testPubkey, decoded)
	}
}

func TestEventIDRoundTrip(t *testing.T) {
	eventID := "5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36"
	note, err := EncodeEventID(eventID)
	if err != nil {
		t.Fatalf("EncodeEventID failed: %v", err)
	}
	decoded, err := DecodeEventID(note)
	if err != nil {
		t.Fatalf("DecodeEventID failed: %v", err)
	}
	if decoded != eventID {
		t.Errorf("round trip mismatch: got %s", decoded)
	}
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	npub, err := EncodePubkey(testPubkey)
	if err != nil {
		t.Fatalf("EncodePubkey failed: %v", err)
	}

	// Flip the last data character to invalidate the checksum
	last := npub[len(npub)-1]
	replacement := byte('q')
	if last == 'q' {
		replacement = 'p'
	}
	corrupted := npub[:len(npub)-1] + string(replacement)

	if _, err := DecodePubkey(corrupted); err == nil {
		t.Error("expected decode of corrupted string to fail")
	} else if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeRejectsUppercase(t *testing.T) {
	npub, err := EncodePubkey(testPubkey)
	if err != nil {
		t.Fatalf("EncodePubkey failed: %v", err)
	}
	if _, err := DecodePubkey(strings.ToUpper(npub)); err == nil {
		t.Error("expected uppercase input to be rejected")
	}
}

func TestDecodeRejectsWrongPrefix(t *testing.T) {
	note, err := EncodeEventID(testPubkey)
	if err != nil {
		t.Fatalf("EncodeEventID failed: %v", err)
	}
	if _, err := DecodePubkey(note); err == nil {
		t.Error("expected note to be rejected as npub")
	}
}

func TestSecretRoundTrip(t *testing.T) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i + 1)
	}
	nsec, err := EncodeSecret(secret)
	if err != nil {
		t.Fatalf("EncodeSecret failed: %v", err)
	}
	if !strings.HasPrefix(nsec, "nsec1") {
		t.Errorf("expected nsec1 prefix, got %s", nsec)
	}
	decoded, err := DecodeSecret(nsec)
	if err != nil {
		t.Fatalf("DecodeSecret failed: %v", err)
	}
	for i := range secret {
		if decoded[i] != secret[i] {
			t.Fatalf("byte %d mismatch: %d != %d", i, decoded[i], secret[i])
		}
	}
}

func TestProfileRoundTrip(t *testing.T) {
	relays := []string{"wss://relay.damus.io", "wss://nos.lol"}
	nprofile, err := EncodeProfile(testPubkey, relays)
	if err != nil {
		t.Fatalf("EncodeProfile failed: %v", err)
	}
	if !strings.HasPrefix(nprofile, "nprofile1") {
		t.Errorf("expected nprofile1 prefix, got %s", nprofile)
	}

	profile, err := DecodeProfile(nprofile)
	if err != nil {
		t.Fatalf("DecodeProfile failed: %v", err)
	}
	if profile.Pubkey != testPubkey {
		t.Errorf("pubkey mismatch: got %s", profile.Pubkey)
	}
	if len(profile.RelayHints) != 2 {
		t.Fatalf("expected 2 relay hints, got %d", len(profile.RelayHints))
	}
	if profile.RelayHints[0] != relays[0] || profile.RelayHints[1] != relays[1] {
		t.Errorf("relay hints mismatch: %v", profile.RelayHints)
	}
}

func TestEntityRoundTrip(t *testing.T) {
	naddr, err := EncodeEntity(30311, testPubkey, "goat-stream")
	if err != nil {
		t.Fatalf("EncodeEntity failed: %v", err)
	}
	entity, err := DecodeEntity(naddr)
	if err != nil {
		t.Fatalf("DecodeEntity failed: %v", err)
	}
	if entity.Kind != 30311 {
		t.Errorf("kind mismatch: got %d", entity.Kind)
	}
	if entity.Author != testPubkey {
		t.Errorf("author mismatch: got %s", entity.Author)
	}
	if entity.DTag != "goat-stream" {
		t.Errorf("d-tag mismatch: got %s", entity.DTag)
	}
}

func TestDecodeSecretDoesNotEchoInput(t *testing.T) {
	input := "nsec1notavalidsecretvaluexxxxxxxxxxxxxxxxxxx"
	_, err := DecodeSecret(input)
	if err == nil {
		t.Fatal("expected decode to fail")
	}
	if strings.Contains(err.Error(), "notavalid") {
		t.Errorf("error message leaks input: %v", err)
	}
}
