// Package thread converts reply context into NIP-10 tag sets: e tags
// with positional markers, deduplicated p tags, and the a tag for
// chat-style replies into addressable activities.
package thread

import (
	"fmt"
	"strings"

	"cyberherd-messaging/internal/nips"
)

// NIP-10 reply markers
const (
	MarkerRoot    = "root"
	MarkerReply   = "reply"
	MarkerMention = "mention"
)

// Context carries the per-call reply references. It is not retained.
type Context struct {
	EventRefs    []string // ordered referenced event IDs (hex)
	Participants []string // p-tag targets: hex pubkeys or nprofile refs
	ChatEventID  string   // replied-to event inside a 30311 activity
	Coordinate   string   // "30311:<pubkey>:<identifier>" activity coordinate
	RelayHint    string   // optional relay for e tags; ws(s) or http(s) form
}

// Warning reports a tag entry that was dropped. Non-fatal: the rest of
// the tag set is still built.
type Warning struct {
	Field string
	Value string
}

func (w Warning) String() string {
	v := w.Value
	if len(v) > 20 {
		v = v[:20] + "..."
	}
	return fmt.Sprintf("invalid %s dropped: %s", w.Field, v)
}

// Markers returns the NIP-10 marker for each of n positional event
// references. Kept separate from tag assembly so the positional rule is
// testable on its own.
func Markers(n int) []string {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []string{MarkerRoot}
	default:
		markers := make([]string, n)
		markers[0] = MarkerRoot
		for i := 1; i < n-1; i++ {
			markers[i] = MarkerReply
		}
		markers[n-1] = MarkerMention
		return markers
	}
}

// NormalizeRelayHint maps a raw relay string to a websocket URL.
// http(s) becomes ws(s); ws:// and wss:// pass through; anything else
// yields "".
func NormalizeRelayHint(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "wss://") || strings.HasPrefix(s, "ws://"):
		return s
	case strings.HasPrefix(s, "https://"):
		return "wss://" + strings.TrimPrefix(s, "https://")
	case strings.HasPrefix(s, "http://"):
		return "ws://" + strings.TrimPrefix(s, "http://")
	default:
		return ""
	}
}

// ValidPubkeyHex reports whether s is exactly 64 lowercase hex characters.
func ValidPubkeyHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ProfileRefPubkey extracts the hex pubkey from an nprofile reference.
// A leading "nostr:" scheme is accepted. Returns "" when s is not a
// decodable nprofile.
func ProfileRefPubkey(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "nostr:")
	if !strings.HasPrefix(s, "nprofile1") {
		return ""
	}
	p, err := nips.DecodeProfile(s)
	if err != nil {
		return ""
	}
	return p.Pubkey
}

// Resolve builds the ordered tag set for a reply. herdProfile is the
// fixed participant pubkey p-tagged on every threaded reply so that
// profile is notified; pass "" to disable.
//
// Invalid participant entries are dropped and reported as warnings; no
// single bad entry aborts the call.
func Resolve(ctx Context, herdProfile string) ([][]string, []Warning) {
	var tags [][]string
	var warnings []Warning
	seen := make(map[string]bool)

	addTag := func(tag []string) {
		key := strings.Join(tag, "\x00")
		if seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	// Collect event refs in order, dropping duplicates and blanks. The
	// chat reply target joins the chain last when not already present.
	var eventIDs []string
	appendUnique := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		for _, existing := range eventIDs {
			if existing == id {
				return
			}
		}
		eventIDs = append(eventIDs, id)
	}
	for _, id := range ctx.EventRefs {
		appendUnique(id)
	}
	if ctx.ChatEventID != "" {
		appendUnique(ctx.ChatEventID)
	}

	relayHint := NormalizeRelayHint(ctx.RelayHint)

	markers := Markers(len(eventIDs))
	for i, id := range eventIDs {
		hint := relayHint
		if markers[i] == MarkerMention {
			// Mentions are context, not thread anchors
			hint = ""
		}
		addTag([]string{"e", id, hint, markers[i]})
	}

	// Participants: validated, deduplicated, first-seen order.
	var participants []string
	seenP := make(map[string]bool)
	appendParticipant := func(pk, field string) {
		pk = strings.ToLower(strings.TrimSpace(pk))
		if pk == "" {
			return
		}
		if !ValidPubkeyHex(pk) {
			warnings = append(warnings, Warning{Field: field, Value: pk})
			return
		}
		if seenP[pk] {
			return
		}
		seenP[pk] = true
		participants = append(participants, pk)
	}

	// Participants may arrive as hex pubkeys or nprofile references.
	for _, pk := range ctx.Participants {
		if hex := ProfileRefPubkey(pk); hex != "" {
			appendParticipant(hex, "p tag")
			continue
		}
		appendParticipant(pk, "p tag")
	}

	// The coordinate author gets a p tag so the activity host is notified.
	coordinate := strings.TrimSpace(ctx.Coordinate)
	if coordinate != "" {
		if author := coordinateAuthor(coordinate); author != "" {
			appendParticipant(author, "coordinate author")
		}
	}

	if herdProfile != "" {
		appendParticipant(herdProfile, "herd profile")
	}

	for _, pk := range participants {
		addTag([]string{"p", pk})
	}

	if coordinate != "" {
		addTag([]string{"a", coordinate})
	}

	return tags, warnings
}

// coordinateAuthor extracts the pubkey from a "kind:pubkey:identifier"
// coordinate, or "" when the shape is off.
func coordinateAuthor(coordinate string) string {
	parts := strings.SplitN(coordinate, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
