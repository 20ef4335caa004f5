// Package nips implements the NIP-19 bech32 identifier codecs used for
// pubkeys (npub), event IDs (note), secrets (nsec), profile pointers
// (nprofile) and addressable-event coordinates (naddr).
package nips

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// Profile represents a decoded nprofile1... identifier
type Profile struct {
	Pubkey     string   // 32-byte pubkey as hex
	RelayHints []string // Optional relay URLs
}

// Entity represents a decoded naddr1... identifier
type Entity struct {
	Kind       uint32   // Event kind
	Author     string   // 32-byte author pubkey as hex
	DTag       string   // d-tag identifier
	RelayHints []string // Optional relay URLs
}

// TLV type constants for NIP-19
const (
	tlvTypeSpecial = 0 // pubkey for nprofile, d-tag for naddr
	tlvTypeRelay   = 1 // relay URL
	tlvTypeAuthor  = 2 // author pubkey
	tlvTypeKind    = 3 // kind (for naddr)
)

// EncodePubkey encodes a hex pubkey to npub format
func EncodePubkey(hexPubkey string) (string, error) {
	data, err := fixed32ToGroups(hexPubkey)
	if err != nil {
		return "", fmt.Errorf("invalid pubkey: %w", err)
	}
	return Bech32Encode("npub", data)
}

// EncodeEventID encodes a hex event ID to note format
func EncodeEventID(hexEventID string) (string, error) {
	data, err := fixed32ToGroups(hexEventID)
	if err != nil {
		return "", fmt.Errorf("invalid event ID: %w", err)
	}
	return Bech32Encode("note", data)
}

// DecodePubkey decodes an npub1... string to a hex pubkey
func DecodePubkey(npub string) (string, error) {
	return decodeFixed32(npub, "npub")
}

// DecodeEventID decodes a note1... string to a hex event ID
func DecodeEventID(note string) (string, error) {
	return decodeFixed32(note, "note")
}

// EncodeSecret encodes a raw 32-byte secret to nsec format.
func EncodeSecret(secret []byte) (string, error) {
	if len(secret) != 32 {
		return "", fmt.Errorf("secret is %d bytes, want 32", len(secret))
	}
	data, err := Bech32ConvertBits(secret, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Bech32Encode("nsec", data)
}

// DecodeSecret decodes an nsec1... string to the raw 32-byte secret.
// The error never contains the input.
func DecodeSecret(nsec string) ([]byte, error) {
	if !strings.HasPrefix(nsec, "nsec1") {
		return nil, fmt.Errorf("%w: not an nsec", ErrDecode)
	}
	hrp, data, err := Bech32Decode(nsec)
	if err != nil {
		return nil, err
	}
	if hrp != "nsec" {
		return nil, fmt.Errorf("%w: invalid hrp for nsec", ErrDecode)
	}
	raw, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: invalid nsec length", ErrDecode)
	}
	return raw, nil
}

// EncodeProfile encodes a hex pubkey and optional relay hints to nprofile format
func EncodeProfile(hexPubkey string, relayHints []string) (string, error) {
	pubkeyBytes, err := hex.DecodeString(hexPubkey)
	if err != nil {
		return "", fmt.Errorf("invalid pubkey: %w", err)
	}
	if len(pubkeyBytes) != 32 {
		return "", fmt.Errorf("invalid pubkey length %d", len(pubkeyBytes))
	}

	var tlvData []byte
	tlvData = append(tlvData, tlvTypeSpecial, 32)
	tlvData = append(tlvData, pubkeyBytes...)
	for _, relay := range relayHints {
		if relay == "" || len(relay) > 255 {
			continue
		}
		tlvData = append(tlvData, tlvTypeRelay, byte(len(relay)))
		tlvData = append(tlvData, relay...)
	}

	data5bit, err := Bech32ConvertBits(tlvData, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Bech32Encode("nprofile", data5bit)
}

// DecodeProfile decodes an nprofile1... bech32 string
func DecodeProfile(nprofile string) (*Profile, error) {
	if !strings.HasPrefix(nprofile, "nprofile1") {
		return nil, fmt.Errorf("%w: not an nprofile", ErrDecode)
	}

	hrp, data, err := Bech32Decode(nprofile)
	if err != nil {
		return nil, err
	}
	if hrp != "nprofile" {
		return nil, fmt.Errorf("%w: invalid hrp for nprofile", ErrDecode)
	}

	tlvBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}

	p := &Profile{RelayHints: []string{}}
	for i := 0; i < len(tlvBytes); {
		if i+2 > len(tlvBytes) {
			break
		}
		tlvType := tlvBytes[i]
		tlvLen := int(tlvBytes[i+1])
		i += 2
		if i+tlvLen > len(tlvBytes) {
			break
		}
		value := tlvBytes[i : i+tlvLen]
		i += tlvLen

		switch tlvType {
		case tlvTypeSpecial: // pubkey
			if tlvLen == 32 {
				p.Pubkey = hex.EncodeToString(value)
			}
		case tlvTypeRelay: // relay hint
			p.RelayHints = append(p.RelayHints, string(value))
		}
	}

	if p.Pubkey == "" {
		return nil, fmt.Errorf("%w: nprofile missing pubkey", ErrDecode)
	}
	return p, nil
}

// EncodeEntity encodes an naddr from kind, pubkey (hex) and d-tag
func EncodeEntity(kind uint32, pubkeyHex string, dTag string) (string, error) {
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", fmt.Errorf("invalid pubkey: %w", err)
	}
	if len(pubkeyBytes) != 32 {
		return "", fmt.Errorf("invalid pubkey length %d", len(pubkeyBytes))
	}

	// D-tag (type 0/special) must come first
	var tlvData []byte
	dTagBytes := []byte(dTag)
	tlvData = append(tlvData, tlvTypeSpecial, byte(len(dTagBytes)))
	tlvData = append(tlvData, dTagBytes...)

	tlvData = append(tlvData, tlvTypeAuthor, 32)
	tlvData = append(tlvData, pubkeyBytes...)

	kindBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(kindBytes, kind)
	tlvData = append(tlvData, tlvTypeKind, 4)
	tlvData = append(tlvData, kindBytes...)

	data5bit, err := Bech32ConvertBits(tlvData, 8, 5, true)
	if err != nil {
		return "", err
	}
	return Bech32Encode("naddr", data5bit)
}

// DecodeEntity decodes an naddr1... bech32 string
func DecodeEntity(naddr string) (*Entity, error) {
	if !strings.HasPrefix(naddr, "naddr1") {
		return nil, fmt.Errorf("%w: not an naddr", ErrDecode)
	}

	hrp, data, err := Bech32Decode(naddr)
	if err != nil {
		return nil, err
	}
	if hrp != "naddr" {
		return nil, fmt.Errorf("%w: invalid hrp for naddr", ErrDecode)
	}

	tlvBytes, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}

	e := &Entity{RelayHints: []string{}}
	hasKind := false
	hasAuthor := false
	for i := 0; i < len(tlvBytes); {
		if i+2 > len(tlvBytes) {
			break
		}
		tlvType := tlvBytes[i]
		tlvLen := int(tlvBytes[i+1])
		i += 2
		if i+tlvLen > len(tlvBytes) {
			break
		}
		value := tlvBytes[i : i+tlvLen]
		i += tlvLen

		switch tlvType {
		case tlvTypeSpecial: // d-tag
			e.DTag = string(value)
		case tlvTypeAuthor:
			if tlvLen == 32 {
				e.Author = hex.EncodeToString(value)
				hasAuthor = true
			}
		case tlvTypeKind:
			if tlvLen == 4 {
				e.Kind = binary.BigEndian.Uint32(value)
				hasKind = true
			}
		case tlvTypeRelay:
			e.RelayHints = append(e.RelayHints, string(value))
		}
	}

	if !hasKind || !hasAuthor {
		return nil, fmt.Errorf("%w: naddr missing required fields", ErrDecode)
	}
	return e, nil
}

// fixed32ToGroups converts a 64-hex string to 5-bit groups for bech32
func fixed32ToGroups(hexValue string) ([]byte, error) {
	raw, err := hex.DecodeString(hexValue)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("length %d, want 32 bytes", len(raw))
	}
	return Bech32ConvertBits(raw, 8, 5, true)
}

func decodeFixed32(bech, wantHRP string) (string, error) {
	if !strings.HasPrefix(bech, wantHRP+"1") {
		return "", fmt.Errorf("%w: not a %s", ErrDecode, wantHRP)
	}
	hrp, data, err := Bech32Decode(bech)
	if err != nil {
		return "", err
	}
	if hrp != wantHRP {
		return "", fmt.Errorf("%w: invalid hrp for %s", ErrDecode, wantHRP)
	}
	raw, err := Bech32ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: invalid %s length", ErrDecode, wantHRP)
	}
	return hex.EncodeToString(raw), nil
}
