// Package keys normalizes Nostr signing material. Raw input may be 64
// hex characters (either case), the same with a 0x prefix, or an nsec
// bech32 string. Errors never echo the raw input.
package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"cyberherd-messaging/internal/nips"
)

// ErrKeyFormat means the signing material could not be normalized.
var ErrKeyFormat = errors.New("unusable signing material")

// SigningMaterial is a normalized 32-byte secret and its derived identity.
// It is request-scoped: callers use it once to sign and drop it.
type SigningMaterial struct {
	priv *btcec.PrivateKey
}

// Normalize parses raw signing material into SigningMaterial.
func Normalize(raw string) (*SigningMaterial, error) {
	// Drop all whitespace, including embedded newlines from pasted keys
	candidate := strings.Join(strings.Fields(raw), "")
	if candidate == "" {
		return nil, fmt.Errorf("%w: empty input", ErrKeyFormat)
	}

	var secret []byte
	if strings.HasPrefix(candidate, "nsec1") {
		decoded, err := nips.DecodeSecret(candidate)
		if err != nil {
			return nil, fmt.Errorf("%w: bad nsec encoding", ErrKeyFormat)
		}
		secret = decoded
	} else {
		candidate = strings.TrimPrefix(strings.TrimPrefix(candidate, "0x"), "0X")
		if len(candidate) != 64 {
			return nil, fmt.Errorf("%w: expected 64 hex characters, got %d", ErrKeyFormat, len(candidate))
		}
		decoded, err := hex.DecodeString(strings.ToLower(candidate))
		if err != nil {
			return nil, fmt.Errorf("%w: non-hex characters", ErrKeyFormat)
		}
		secret = decoded
	}

	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: secret is %d bytes, want 32", ErrKeyFormat, len(secret))
	}

	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &SigningMaterial{priv: priv}, nil
}

// PublicKeyHex returns the x-only public key as 64 lowercase hex characters.
func (m *SigningMaterial) PublicKeyHex() string {
	// SerializeCompressed is 33 bytes; drop the 02/03 parity prefix
	return hex.EncodeToString(m.priv.PubKey().SerializeCompressed()[1:])
}

// Npub returns the bech32 npub form of the derived public key.
func (m *SigningMaterial) Npub() (string, error) {
	return nips.EncodePubkey(m.PublicKeyHex())
}

// SecretHex returns the normalized secret as 64 lowercase hex characters.
func (m *SigningMaterial) SecretHex() string {
	return hex.EncodeToString(m.priv.Serialize())
}

// Sign produces a Schnorr signature over a 32-byte digest.
func (m *SigningMaterial) Sign(digest []byte) ([]byte, error) {
	sig, err := schnorr.Sign(m.priv, digest)
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}
