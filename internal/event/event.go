// Package event builds, identifies and signs Nostr events (NIP-01).
package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"cyberherd-messaging/internal/keys"
)

// Event kinds published by this service
const (
	KindNote      = 1    // regular text note
	KindChatReply = 1311 // live chat message replying into a 30311 activity
)

// ErrEmptyContent means the note body was empty after trimming.
var ErrEmptyContent = errors.New("empty note content")

// Event is the NIP-01 wire shape. Field order and hex casing are exact
// for relay interoperability.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Serialize returns the canonical form hashed for the event ID:
// [0, pubkey, created_at, kind, tags, content].
//
// HTML escaping must be disabled: relays hash the raw JSON, and Go's
// default escaping of <, > and & would change the digest.
func Serialize(evt *Event) []byte {
	arr := []interface{}{
		0,
		evt.PubKey,
		evt.CreatedAt,
		evt.Kind,
		evt.Tags,
		evt.Content,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.Encode(arr)

	// Encoder.Encode adds a trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// ComputeID returns the sha256 digest of the canonical serialization as hex.
func ComputeID(evt *Event) string {
	hash := sha256.Sum256(Serialize(evt))
	return hex.EncodeToString(hash[:])
}

// InferKind returns KindChatReply when the tag set references a 30311
// activity coordinate, KindNote otherwise.
func InferKind(tags [][]string) int {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == "a" && strings.HasPrefix(tag[1], "30311:") {
			return KindChatReply
		}
	}
	return KindNote
}

// Build assembles, identifies and signs an event. The pubkey is always
// derived from the signing material, never taken from the caller.
func Build(kind int, content string, tags [][]string, material *keys.SigningMaterial, createdAt time.Time) (*Event, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if tags == nil {
		tags = [][]string{}
	}

	evt := &Event{
		PubKey:    material.PublicKeyHex(),
		CreatedAt: createdAt.Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	evt.ID = ComputeID(evt)

	idBytes, err := hex.DecodeString(evt.ID)
	if err != nil {
		return nil, fmt.Errorf("decode event id: %w", err)
	}
	sig, err := material.Sign(idBytes)
	if err != nil {
		return nil, fmt.Errorf("sign event: %w", err)
	}
	evt.Sig = hex.EncodeToString(sig)

	return evt, nil
}

// Verify checks the Schnorr signature against the event ID and pubkey.
func Verify(evt *Event) bool {
	if len(evt.Sig) != 128 || len(evt.PubKey) != 64 {
		return false
	}

	sigBytes, err := hex.DecodeString(evt.Sig)
	if err != nil {
		return false
	}
	pubKeyBytes, err := hex.DecodeString(evt.PubKey)
	if err != nil {
		return false
	}
	idBytes, err := hex.DecodeString(evt.ID)
	if err != nil {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}

	return sig.Verify(idBytes, pubKey)
}

// ShortID truncates an ID/pubkey to 12 chars for logging
func ShortID(id string) string {
	if len(id) >= 12 {
		return id[:12]
	}
	return id
}
