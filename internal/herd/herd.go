// Package herd holds the resident goat roster and the helpers that turn
// it into message text and tag participants.
package herd

import (
	"math/rand"
	"strings"

	"cyberherd-messaging/internal/nips"
)

// Goat is one resident animal with its Nostr identity.
type Goat struct {
	Name    string
	Profile string // nostr:nprofile1... reference
	Pubkey  string // 32-byte pubkey as hex
}

// DefaultRoster is the resident herd. Order matters only for
// deterministic test selection.
func DefaultRoster() []Goat {
	return []Goat{
		{
			Name:    "Dexter",
			Profile: "nostr:nprofile1qqsw4zlzyfx43mc88psnlse8sywpfl45kuap9dy05yzkepkvu6ca5wg7qyak5",
			Pubkey:  "ea8be2224d58ef0738613fc327811c14feb4b73a12b48fa1056c86cce6b1da39",
		},
		{
			Name:    "Rowan",
			Profile: "nostr:nprofile1qqs2w94r0fs29gepzfn5zuaupn969gu3fstj3gq8kvw3cvx9fnxmaugwur22r",
			Pubkey:  "a716a37a60a2a32112674173bc0ccba2a3914c1728a007b31d1c30c54ccdbef1",
		},
		{
			Name:    "Nova",
			Profile: "nostr:nprofile1qqsrzy7clymq5xwcfhh0dfz6zfe7h63k8r0j8yr49mxu6as4yv2084s0vf035",
			Pubkey:  "3113d8f9360a19d84deef6a45a1273ebea3638df2390752ecdcd76152314f3d6",
		},
		{
			Name:    "Cosmo",
			Profile: "nostr:nprofile1qqsq6n8u7dzrnhhy7xy78k2ee7e4wxlgrkm5g2rgjl3napr9q54n4ncvkqcsj",
			Pubkey:  "0d4cfcf34439dee4f189e3d959cfb3571be81db744286897e33e8465052b3acf",
		},
		{
			Name:    "Newton",
			Profile: "nostr:nprofile1qqszdsnpyzwhjcqads3hwfywt5jfmy85jvx8yup06yq0klrh93ldjxc26lmyx",
			Pubkey:  "26c261209d79601d6c2377248e5d249d90f4930c72702fd100fb7c772c7ed91b",
		},
	}
}

// PickRandom selects between 1 and len(roster) goats without repeats,
// preserving no particular order. The rng is injected so callers can
// seed deterministically.
func PickRandom(rng *rand.Rand, roster []Goat) []Goat {
	if len(roster) == 0 {
		return nil
	}
	n := 1 + rng.Intn(len(roster))
	idx := rng.Perm(len(roster))[:n]
	picked := make([]Goat, 0, n)
	for _, i := range idx {
		picked = append(picked, roster[i])
	}
	return picked
}

// Names returns the goat names in roster order.
func Names(goats []Goat) []string {
	names := make([]string, 0, len(goats))
	for _, g := range goats {
		names = append(names, g.Name)
	}
	return names
}

// Pubkeys returns the goat pubkeys in roster order.
func Pubkeys(goats []Goat) []string {
	pks := make([]string, 0, len(goats))
	for _, g := range goats {
		pks = append(pks, g.Pubkey)
	}
	return pks
}

// JoinWithAnd renders a list as "a", "a and b" or "a, b and c".
func JoinWithAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

// NormalizeProfileRef ensures a profile reference carries the nostr:
// scheme used when embedding it in note content.
func NormalizeProfileRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "nostr:") {
		return ref
	}
	return "nostr:" + ref
}

// ProfileForPubkey encodes a hex pubkey as a nostr:nprofile reference.
func ProfileForPubkey(pubkeyHex string, relayHints []string) (string, error) {
	nprofile, err := nips.EncodeProfile(pubkeyHex, relayHints)
	if err != nil {
		return "", err
	}
	return "nostr:" + nprofile, nil
}
