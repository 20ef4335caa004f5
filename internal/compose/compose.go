// Package compose renders herd event notifications into message
// bundles. Every bundle carries two renderings of the same facts: the
// nostr channel embeds bech32 identity references, the websocket
// channel uses plain display names for overlay clients.
package compose

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cyberherd-messaging/internal/herd"
	"cyberherd-messaging/internal/nips"
	"cyberherd-messaging/internal/templates"
)

// ErrUnknownEventType means the event type is outside the supported set.
var ErrUnknownEventType = errors.New("unknown event type")

// Supported event types
const (
	EventCyberHerd            = "cyber_herd"
	EventNewMember            = "new_member"
	EventFeederTriggered      = "feeder_triggered"
	EventFeederTriggerBolt12  = "feeder_trigger_bolt12"
	EventSatsReceived         = "sats_received"
	EventSatsReceivedZap      = "sats_received_zap"
	EventCyberHerdTreats      = "cyber_herd_treats"
	EventHeadbuttInfo         = "headbutt_info"
	EventHeadbuttSuccess      = "headbutt_success"
	EventHeadbuttFailure      = "headbutt_failure"
	EventKind6Repost          = "kind_6_repost"
	EventKind7Reaction        = "kind_7_reaction"
	EventKind6HeadbuttFailure = "kind_6_headbutt_failure"
	EventKind7HeadbuttFailure = "kind_7_headbutt_failure"
	EventZapperDisplacesKind6 = "zapper_displaces_kind_6"
	EventZapperDisplacesKind7 = "zapper_displaces_kind_7"
	EventMemberIncrease       = "member_increase"
	EventDailyReset           = "daily_reset"
	EventHerdResetMessage     = "herd_reset_message"
	EventInterfaceInfo        = "interface_info"
	EventFeedingRegular       = "feeding_regular"
	EventFeedingBonus         = "feeding_bonus"
	EventFeedingRemainder     = "feeding_remainder"
	EventFeedingFallback      = "feeding_fallback"
)

const promoLink = "\n\n https://lightning-goats.com\n\n"

// Person identifies one herd participant. Any field may be empty; the
// richest available reference wins when rendering for the nostr channel.
type Person struct {
	DisplayName string
	Pubkey      string // hex
	Nprofile    string // with or without nostr: scheme
	EventID     string // hex, used as a last-resort reference
}

// HeadbuttStakes describes the displacement threshold shown when the
// herd is full.
type HeadbuttStakes struct {
	RequiredSats int64
	VictimName   string
}

// GoatCard is overlay metadata for one mentioned goat.
type GoatCard struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Bundle is a fully rendered notification.
type Bundle struct {
	NostrContent     string
	WebsocketContent string
	SpotsInfo        string
	HeadbuttText     string
	SpotsRemaining   int
	GoatData         []GoatCard
	GoatPubkeys      []string // hex pubkeys to p-tag when goats are mentioned
	ReplyRelay       string   // relay hint carried by the chosen template, may be ""
}

// Params carries the per-event facts. Unused fields are ignored by
// builders that do not need them.
type Params struct {
	Member         Person
	Attacker       Person
	Victim         Person
	Amount         int64 // member's total contribution
	NewAmount      int64
	Difference     int64
	IncreaseAmount int64
	AttackerAmount int64
	VictimAmount   int64
	RequiredSats   int64
	SpotsRemaining int
	HeadbuttInfo   *HeadbuttStakes
	NextHeadbutt   *HeadbuttStakes
	IsChatReply    bool // strip the promo link for live-chat replies
}

// Composer renders bundles from the template store. Safe for
// concurrent use.
type Composer struct {
	store  templates.Store
	owner  string
	roster []herd.Goat

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Composer reading templates for owner (falling back to
// the shared defaults) and mentioning goats from roster. rng drives
// template and goat selection; tests inject a seeded source.
func New(store templates.Store, owner string, roster []herd.Goat, rng *rand.Rand) *Composer {
	return &Composer{store: store, owner: owner, roster: roster, rng: rng}
}

// Build renders the bundle for one event.
func (c *Composer) Build(ctx context.Context, eventType string, p Params) (*Bundle, error) {
	switch eventType {
	case EventCyberHerd, EventNewMember:
		return c.buildJoin(ctx, p)
	case EventFeederTriggered, EventFeederTriggerBolt12, EventSatsReceived, EventSatsReceivedZap:
		return c.buildPayment(ctx, eventType, p)
	case EventCyberHerdTreats:
		return c.buildTreats(ctx, p)
	case EventHeadbuttInfo:
		return c.buildHeadbuttInfo(ctx, p)
	case EventHeadbuttSuccess:
		return c.buildHeadbuttSuccess(ctx, p)
	case EventHeadbuttFailure:
		return c.buildHeadbuttFailure(ctx, templates.CategoryHeadbuttFailure, p, false)
	case EventKind6HeadbuttFailure:
		return c.buildHeadbuttFailure(ctx, templates.CategoryKind6HeadbuttFail, p, true)
	case EventKind7HeadbuttFailure:
		return c.buildHeadbuttFailure(ctx, templates.CategoryKind7HeadbuttFail, p, true)
	case EventKind6Repost:
		return c.buildEngagementJoin(ctx, templates.CategoryKind6Repost, p)
	case EventKind7Reaction:
		return c.buildEngagementJoin(ctx, templates.CategoryKind7Reaction, p)
	case EventZapperDisplacesKind6:
		return c.buildZapperDisplaces(ctx, templates.CategoryZapperDisplaces6, p)
	case EventZapperDisplacesKind7:
		return c.buildZapperDisplaces(ctx, templates.CategoryZapperDisplaces7, p)
	case EventMemberIncrease:
		return c.buildMemberIncrease(ctx, p)
	case EventDailyReset, EventHerdResetMessage:
		return c.buildPlain(ctx, templates.CategoryDailyReset, p)
	case EventInterfaceInfo:
		return c.buildPlain(ctx, templates.CategoryInterfaceInfo, p)
	case EventFeedingRegular:
		return c.buildFeeding(ctx, templates.CategoryFeedingRegular, p)
	case EventFeedingBonus:
		return c.buildFeeding(ctx, templates.CategoryFeedingBonus, p)
	case EventFeedingRemainder:
		return c.buildFeeding(ctx, templates.CategoryFeedingRemainder, p)
	case EventFeedingFallback:
		return c.buildFeeding(ctx, templates.CategoryFeedingFallback, p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
}

func (c *Composer) buildJoin(ctx context.Context, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, templates.CategoryCyberHerdJoin)
	if err != nil {
		return nil, err
	}

	thanks := ""
	if p.Amount > 0 {
		thanks = c.thanksPart(ctx, p.Amount)
	}
	spotsInfo, headbuttText := c.spotsAndHeadbutt(ctx, p.SpotsRemaining, p.HeadbuttInfo)

	common := map[string]string{
		"thanks_part": thanks,
		"difference":  formatSats(p.Difference),
		"new_amount":  formatSats(p.Amount),
		"event_id":    p.Member.EventID,
	}

	nostrVals := cloneWith(common, "name", c.nostrName(p.Member))
	wsVals := cloneWith(common, "name", displayName(p.Member, "anon"))

	nostr := stripPromo(templates.Render(tpl.Content, nostrVals)+spotsInfo+headbuttText, p.IsChatReply)
	ws := templates.Render(tpl.Content, wsVals) + spotsInfo + headbuttText

	return &Bundle{
		NostrContent:     nostr,
		WebsocketContent: ws,
		SpotsInfo:        spotsInfo,
		HeadbuttText:     headbuttText,
		SpotsRemaining:   p.SpotsRemaining,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildPayment(ctx context.Context, eventType string, p Params) (*Bundle, error) {
	category := templates.CategoryFeederTrigger
	if eventType == EventSatsReceived || eventType == EventSatsReceivedZap {
		category = templates.CategorySatsReceived
	}
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}

	boltPrefix := ""
	if eventType == EventFeederTriggerBolt12 {
		boltPrefix = "⚡BOLT12 PAYMENT⚡ "
	}

	differenceMsg := c.differencePart(ctx, p.Difference)

	var goatData []GoatCard
	var goatPubkeys []string
	goatNames := ""
	goatMentions := ""
	if strings.Contains(tpl.Content, "{goat_name}") {
		goats := c.pickGoats()
		goatData = make([]GoatCard, 0, len(goats))
		mentions := make([]string, 0, len(goats))
		for _, g := range goats {
			goatData = append(goatData, GoatCard{
				Name:     g.Name,
				ImageURL: "images/" + strings.ToLower(g.Name) + ".png",
			})
			mentions = append(mentions, herd.NormalizeProfileRef(g.Profile))
		}
		goatNames = herd.JoinWithAnd(herd.Names(goats))
		goatMentions = herd.JoinWithAnd(mentions)
		goatPubkeys = herd.Pubkeys(goats)
	}

	common := map[string]string{
		"new_amount":         formatSats(p.NewAmount),
		"difference_message": differenceMsg,
	}

	nostrBody := templates.Render(tpl.Content, cloneWith(common, "goat_name", goatMentions))
	wsBody := templates.Render(tpl.Content, cloneWith(common, "goat_name", goatNames))

	return &Bundle{
		NostrContent:     stripPromo(boltPrefix+nostrBody, p.IsChatReply),
		WebsocketContent: boltPrefix + wsBody,
		GoatData:         goatData,
		GoatPubkeys:      goatPubkeys,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildTreats(ctx context.Context, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, templates.CategoryCyberHerdTreats)
	if err != nil {
		return nil, err
	}
	common := map[string]string{"new_amount": formatSats(p.Amount)}
	nostr := templates.Render(tpl.Content, cloneWith(common, "name", c.nostrName(p.Member)))
	ws := templates.Render(tpl.Content, cloneWith(common, "name", displayName(p.Member, "Anon")))
	return &Bundle{
		NostrContent:     stripPromo(nostr, p.IsChatReply),
		WebsocketContent: ws,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildHeadbuttInfo(ctx context.Context, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, templates.CategoryHeadbuttInfo)
	if err != nil {
		return nil, err
	}
	common := map[string]string{"required_sats": formatSats(p.RequiredSats)}
	nostr := templates.Render(tpl.Content, cloneWith(common, "victim_name", c.nostrName(p.Victim)))
	ws := templates.Render(tpl.Content, cloneWith(common, "victim_name", displayName(p.Victim, "Anon")))
	return &Bundle{
		NostrContent:     stripPromo(nostr, p.IsChatReply),
		WebsocketContent: ws,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildHeadbuttSuccess(ctx context.Context, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, templates.CategoryHeadbuttSuccess)
	if err != nil {
		return nil, err
	}

	common := map[string]string{
		"attacker_amount": formatSats(p.AttackerAmount),
		"victim_amount":   formatSats(p.VictimAmount),
	}
	nostrVals := cloneWith(common, "attacker_name", c.nostrName(p.Attacker))
	nostrVals["victim_name"] = c.nostrName(p.Victim)
	wsVals := cloneWith(common, "attacker_name", displayName(p.Attacker, "Anon"))
	wsVals["victim_name"] = displayName(p.Victim, "Anon")

	headbuttText := ""
	if p.NextHeadbutt != nil {
		headbuttText = " " + c.headbuttInfoText(ctx, p.NextHeadbutt)
	}

	nostr := stripPromo(templates.Render(tpl.Content, nostrVals)+headbuttText, p.IsChatReply)
	ws := templates.Render(tpl.Content, wsVals) + headbuttText
	return &Bundle{
		NostrContent:     nostr,
		WebsocketContent: ws,
		HeadbuttText:     headbuttText,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

// buildHeadbuttFailure serves the plain failure and the repost and
// reaction variants, which additionally name the rejected member.
func (c *Composer) buildHeadbuttFailure(ctx context.Context, category string, p Params, withName bool) (*Bundle, error) {
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}

	common := map[string]string{
		"attacker_amount": formatSats(p.AttackerAmount),
		"victim_amount":   formatSats(p.VictimAmount),
		"required_sats":   formatSats(p.RequiredSats),
	}
	nostrVals := cloneWith(common, "attacker_name", c.nostrName(p.Attacker))
	nostrVals["victim_name"] = c.nostrName(p.Victim)
	wsVals := cloneWith(common, "attacker_name", displayName(p.Attacker, "Anon"))
	wsVals["victim_name"] = displayName(p.Victim, "Anon")
	if withName {
		nostrVals["name"] = c.nostrName(p.Member)
		wsVals["name"] = displayName(p.Member, "Anon")
	}

	return &Bundle{
		NostrContent:     stripPromo(templates.Render(tpl.Content, nostrVals), p.IsChatReply),
		WebsocketContent: templates.Render(tpl.Content, wsVals),
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildEngagementJoin(ctx context.Context, category string, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}
	spotsInfo, headbuttText := c.spotsAndHeadbutt(ctx, p.SpotsRemaining, p.HeadbuttInfo)

	nostr := templates.Render(tpl.Content, map[string]string{"name": c.nostrName(p.Member)})
	ws := templates.Render(tpl.Content, map[string]string{"name": displayName(p.Member, "Anon")})

	return &Bundle{
		NostrContent:     stripPromo(nostr+spotsInfo+headbuttText, p.IsChatReply),
		WebsocketContent: ws + spotsInfo + headbuttText,
		SpotsInfo:        spotsInfo,
		HeadbuttText:     headbuttText,
		SpotsRemaining:   p.SpotsRemaining,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildZapperDisplaces(ctx context.Context, category string, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}
	spotsInfo, headbuttText := c.spotsAndHeadbutt(ctx, p.SpotsRemaining, p.HeadbuttInfo)

	common := map[string]string{"attacker_amount": formatSats(p.AttackerAmount)}
	nostrVals := cloneWith(common, "attacker_name", c.nostrName(p.Attacker))
	nostrVals["victim_name"] = c.nostrName(p.Victim)
	wsVals := cloneWith(common, "attacker_name", displayName(p.Attacker, "Anon"))
	wsVals["victim_name"] = displayName(p.Victim, "Anon")

	nostr := stripPromo(templates.Render(tpl.Content, nostrVals)+spotsInfo+headbuttText, p.IsChatReply)
	ws := templates.Render(tpl.Content, wsVals) + spotsInfo + headbuttText
	return &Bundle{
		NostrContent:     nostr,
		WebsocketContent: ws,
		SpotsInfo:        spotsInfo,
		HeadbuttText:     headbuttText,
		SpotsRemaining:   p.SpotsRemaining,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildMemberIncrease(ctx context.Context, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, templates.CategoryMemberIncrease)
	if err != nil {
		return nil, err
	}
	spotsInfo, headbuttText := c.spotsAndHeadbutt(ctx, p.SpotsRemaining, p.HeadbuttInfo)

	common := map[string]string{
		"increase_amount": formatSats(p.IncreaseAmount),
		"new_total":       formatSats(p.Amount),
	}
	nostr := templates.Render(tpl.Content, cloneWith(common, "member_name", c.nostrName(p.Member)))
	ws := templates.Render(tpl.Content, cloneWith(common, "member_name", displayName(p.Member, "Anon")))

	return &Bundle{
		NostrContent:     stripPromo(nostr+spotsInfo+headbuttText, p.IsChatReply),
		WebsocketContent: ws + spotsInfo + headbuttText,
		SpotsInfo:        spotsInfo,
		HeadbuttText:     headbuttText,
		SpotsRemaining:   p.SpotsRemaining,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

// buildPlain covers events whose template needs no substitutions and
// renders identically on both channels.
func (c *Composer) buildPlain(ctx context.Context, category string, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}
	content := stripPromo(tpl.Content, p.IsChatReply)
	return &Bundle{
		NostrContent:     content,
		WebsocketContent: content,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

func (c *Composer) buildFeeding(ctx context.Context, category string, p Params) (*Bundle, error) {
	tpl, err := c.pick(ctx, category)
	if err != nil {
		return nil, err
	}
	name := displayName(p.Member, "member")
	content := templates.Render(tpl.Content, map[string]string{
		"new_amount":   formatSats(p.NewAmount),
		"display_name": name,
		"name":         name,
	})
	content = stripPromo(content, p.IsChatReply)
	return &Bundle{
		NostrContent:     content,
		WebsocketContent: content,
		ReplyRelay:       tpl.ReplyRelay,
	}, nil
}

// pick chooses one template from a category, owner overrides first.
func (c *Composer) pick(ctx context.Context, category string) (templates.Parsed, error) {
	pool, err := templates.ListMerged(ctx, c.store, c.owner, category)
	if err != nil {
		return templates.Parsed{}, err
	}
	if len(pool) == 0 {
		return templates.Parsed{}, fmt.Errorf("%w: category %s", templates.ErrTemplateNotFound, category)
	}
	sort.Slice(pool, func(i, j int) bool { return keyLess(pool[i].Key, pool[j].Key) })

	c.mu.Lock()
	i := c.rng.Intn(len(pool))
	c.mu.Unlock()
	return templates.ParseContent(pool[i].Content), nil
}

func (c *Composer) pickGoats() []herd.Goat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return herd.PickRandom(c.rng, c.roster)
}

// thanksPart renders the contribution acknowledgement fragment.
func (c *Composer) thanksPart(ctx context.Context, amount int64) string {
	tpl, err := c.pick(ctx, templates.CategoryThankYouVariations)
	if err != nil {
		return ""
	}
	return templates.Render(tpl.Content, map[string]string{"new_amount": formatSats(amount)})
}

// differencePart renders the "sats until feeding" fragment.
func (c *Composer) differencePart(ctx context.Context, difference int64) string {
	tpl, err := c.pick(ctx, templates.CategoryVariations)
	if err != nil {
		return ""
	}
	return templates.Render(tpl.Content, map[string]string{"difference": formatSats(difference)})
}

func (c *Composer) headbuttInfoText(ctx context.Context, stakes *HeadbuttStakes) string {
	tpl, err := c.pick(ctx, templates.CategoryHeadbuttInfo)
	if err != nil {
		return ""
	}
	victim := stakes.VictimName
	if victim == "" {
		victim = "Anon"
	}
	return templates.Render(tpl.Content, map[string]string{
		"required_sats": formatSats(stakes.RequiredSats),
		"victim_name":   victim,
	})
}

// spotsAndHeadbutt renders the availability suffix. When the herd is
// full and displacement stakes are known, the headbutt hint replaces
// the spots line.
func (c *Composer) spotsAndHeadbutt(ctx context.Context, spotsRemaining int, stakes *HeadbuttStakes) (string, string) {
	spotsInfo := ""
	switch {
	case spotsRemaining > 1:
		spotsInfo = fmt.Sprintf("⚡ %d more spots available. ⚡", spotsRemaining)
	case spotsRemaining == 1:
		spotsInfo = "⚡ 1 more spot available. ⚡"
	}

	headbuttText := ""
	if spotsRemaining == 0 && stakes != nil {
		headbuttText = " " + c.headbuttInfoText(ctx, stakes)
	}
	return spotsInfo, headbuttText
}

// nostrName picks the richest reference for embedding in note content:
// npub from the pubkey, then nprofile, then a note reference, then the
// display name.
func (c *Composer) nostrName(p Person) string {
	if pk := strings.ToLower(strings.TrimSpace(p.Pubkey)); pk != "" {
		if npub, err := nips.EncodePubkey(pk); err == nil {
			return "nostr:" + npub
		}
	}
	if p.Nprofile != "" {
		return herd.NormalizeProfileRef(p.Nprofile)
	}
	if id := strings.ToLower(strings.TrimSpace(p.EventID)); id != "" {
		if note, err := nips.EncodeEventID(id); err == nil {
			return "nostr:" + note
		}
	}
	return displayName(p, "anon")
}

func displayName(p Person, fallback string) string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return fallback
}

// stripPromo removes the promotional link from live-chat replies where
// repeated links read as spam.
func stripPromo(content string, isChatReply bool) string {
	if !isChatReply {
		return content
	}
	return strings.ReplaceAll(content, promoLink, "")
}

func cloneWith(m map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

func formatSats(n int64) string {
	return strconv.FormatInt(n, 10)
}

// keyLess orders template keys numerically when both parse, so "10"
// sorts after "9" in the seeded pools.
func keyLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
