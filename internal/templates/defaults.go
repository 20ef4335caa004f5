package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// Seed categories. Callers reference these instead of repeating the
// string names.
const (
	CategoryCyberHerdJoin      = "cyber_herd_join"
	CategoryThankYouVariations = "thank_you_variations"
	CategoryVariations         = "variations"
	CategoryCyberHerdTreats    = "cyber_herd_treats"
	CategoryHeadbuttSuccess    = "headbutt_success"
	CategoryHeadbuttFailure    = "headbutt_failure"
	CategoryHeadbuttInfo       = "headbutt_info"
	CategoryMemberIncrease     = "member_increase"
	CategoryDailyReset         = "daily_reset_dict"
	CategoryFeederTrigger      = "feeder_trigger_dict"
	CategoryFeedingRegular     = "feeding_regular_dict"
	CategoryFeedingBonus       = "feeding_bonus_dict"
	CategoryFeedingRemainder   = "feeding_remainder_dict"
	CategoryFeedingFallback    = "feeding_fallback_dict"
	CategoryInterfaceInfo      = "interface_info_dict"
	CategorySatsReceived       = "sats_received_dict"
	CategoryKind6Repost        = "kind_6_repost"
	CategoryKind7Reaction      = "kind_7_reaction"
	CategoryKind6HeadbuttFail  = "kind_6_headbutt_failure"
	CategoryKind7HeadbuttFail  = "kind_7_headbutt_failure"
	CategoryZapperDisplaces6   = "zapper_displaces_kind_6"
	CategoryZapperDisplaces7   = "zapper_displaces_kind_7"
)

const promoLink = "\n\n https://lightning-goats.com\n\n"

// jt builds the JSON body form for templates that carry a relay hint.
func jt(content, replyRelay string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.Encode(struct {
		Content    string `json:"content"`
		ReplyRelay string `json:"reply_relay"`
	}{content, replyRelay})
	return strings.TrimSuffix(buf.String(), "\n")
}

// SeedDefaults installs the shared default pools under the empty owner.
// Existing entries are overwritten so upgrades refresh stale seeds.
func SeedDefaults(ctx context.Context, store Store) error {
	for category, pool := range seedPools() {
		for key, content := range pool {
			tpl := Template{Category: category, Key: key, Content: content}
			if err := store.Put(ctx, tpl); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedPools() map[string]map[string]string {
	return map[string]map[string]string{
		CategoryCyberHerdJoin: {
			"0": jt("{name} has joined the ⚡ CyberHerd ⚡. {thanks_part} The feeder will activate in {difference} sats."+promoLink, "https://relay.damus.io"),
			"1": jt("Welcome, {name}. {thanks_part} The ⚡ CyberHerd ⚡ grows. {difference} sats are required for the next feeding cycle."+promoLink, "https://nostr-pub.wellorder.net"),
		},
		CategoryThankYouVariations: {
			"0": jt("Thank you for the contribution of {new_amount} sats.", "https://relay.snort.social"),
			"1": jt("Your {new_amount} sat contribution has been received and supports the herd.", "https://relay.snort.social"),
		},
		CategoryVariations: {
			"0":  "{difference} sats are required for feeder activation.",
			"1":  "The next feeding cycle will begin in {difference} sats.",
			"2":  "Awaiting a remaining {difference} sats to trigger the feeder.",
			"3":  "{difference} sats needed before the goats receive their treats.",
			"4":  "The feeder is {difference} sats away from activation.",
			"5":  "The feeding protocol will initiate after {difference} more sats.",
			"6":  "The system requires an additional {difference} sats to dispense treats.",
			"7":  "The feeder activation is pending {difference} more sats.",
			"8":  "{difference} sats remaining until the next scheduled feeding.",
			"9":  "Please note: {difference} more sats are needed for the next feeding.",
			"10": "The feeder will dispense treats once {difference} more sats are contributed.",
		},
		CategoryCyberHerdTreats: {
			"0": "{name} has received a reward of {new_amount} sats from the ⚡ CyberHerd ⚡ distribution." + promoLink,
			"1": "A distribution of {new_amount} sats has been sent to {name} as part of their ⚡ CyberHerd ⚡ membership." + promoLink,
		},
		CategoryHeadbuttSuccess: {
			"0": jt("⚡headbutt⚡: A new member has joined the ⚡ CyberHerd ⚡. {attacker_name} ({attacker_amount} sats) has displaced {victim_name} ({victim_amount} sats)."+promoLink, "https://relay.damus.io"),
			"1": jt("⚡headbutt⚡: The ⚡ CyberHerd ⚡ roster has been updated. {attacker_name} ({attacker_amount} sats) has taken the position previously held by {victim_name} ({victim_amount} sats)."+promoLink, "https://relay.damus.io"),
			"2": jt("⚡headbutt⚡: Membership change: {attacker_name} has entered the ⚡ CyberHerd ⚡ with a contribution of {attacker_amount} sats, displacing {victim_name} ({victim_amount} sats)."+promoLink, "https://nostr-pub.wellorder.net"),
			"3": jt("⚡headbutt⚡: A position in the ⚡ CyberHerd ⚡ has been filled by {attacker_name} ({attacker_amount} sats). The previous member, {victim_name} ({victim_amount} sats), has been removed."+promoLink, "https://nostr-pub.wellorder.net"),
			"4": jt("⚡headbutt⚡: Update: {attacker_name} is now a member of the ⚡ CyberHerd ⚡ with a {attacker_amount} sat contribution, replacing {victim_name} ({victim_amount} sats)."+promoLink, "https://relay.snort.social"),
		},
		CategoryHeadbuttFailure: {
			"0": "⚡headbutt⚡: The ⚡ CyberHerd ⚡ is currently at full capacity. To join, a contribution of {required_sats} sats is needed to displace the member with the lowest contribution, {victim_name}." + promoLink,
			"1": "⚡headbutt⚡: The ⚡ CyberHerd ⚡ is at capacity. A contribution greater than {required_sats} sats will grant you {victim_name}'s position." + promoLink,
			"2": "⚡headbutt⚡: The ⚡ CyberHerd ⚡ is full. To become a member, you must contribute more than the lowest member's amount of {required_sats} sats, currently held by {victim_name}." + promoLink,
			"3": "⚡headbutt⚡: Membership in the ⚡ CyberHerd ⚡ is currently full. You can gain a spot by contributing at least {required_sats} sats, which will displace {victim_name}." + promoLink,
			"4": "⚡headbutt⚡: There are no available spots in the ⚡ CyberHerd ⚡. A contribution of {required_sats} sats or more is required to take the place of {victim_name}." + promoLink,
		},
		CategoryHeadbuttInfo: {
			"0": "⚡headbutt⚡: The ⚡ CyberHerd ⚡ is currently at full capacity. To join, a contribution of {required_sats} sats is needed to displace the member with the lowest contribution, {victim_name}." + promoLink,
		},
		CategoryMemberIncrease: {
			"0": "{member_name} increased their contribution by {increase_amount} sats, bringing their total to {new_total} sats." + promoLink,
			"1": "{member_name} has boosted their ⚡ CyberHerd ⚡ contribution by {increase_amount} sats, now totaling {new_total} sats." + promoLink,
			"2": "Contribution update: {member_name} added {increase_amount} sats to their total of {new_total} sats in the ⚡ CyberHerd ⚡." + promoLink,
			"3": "{member_name} has increased their stake in the ⚡ CyberHerd ⚡ by {increase_amount} sats, reaching a total of {new_total} sats." + promoLink,
			"4": "⚡ CyberHerd ⚡ update: {member_name} has grown their contribution by {increase_amount} sats, now at {new_total} sats total." + promoLink,
		},
		CategoryDailyReset: {
			"0": "🔄 Daily CyberHerd reset completed. All member contributions have been reset to zero. New feeding cycle begins now!" + promoLink,
			"1": "🌅 Good morning! The CyberHerd has been reset for a new day. All contributions cleared and ready for fresh participation." + promoLink,
			"2": "⚡ System reset: Daily CyberHerd cycle has begun. Previous contributions have been cleared. Welcome to participate!" + promoLink,
			"3": "🔄 CyberHerd daily reset executed. All member balances reset to zero. Time to start contributing again!" + promoLink,
			"4": "🌟 New day, new opportunities! CyberHerd has been reset and is ready for fresh contributions." + promoLink,
		},
		CategoryFeederTrigger: {
			"0": jt("🎉 Feeder activated! {new_amount} sats have triggered the feeding mechanism. {difference_message} Scientific fact: Goats, such as {goat_name}, have uniquely shaped rectangular pupils, which provide them a wide field of vision, aiding in predator detection."+promoLink, "https://relay.damus.io"),
			"1": jt("⚡ Feeder trigger reached! {new_amount} sats collected - dispensing treats to CyberHerd members. {difference_message} Fun fact: {goat_name} and other goats are incredibly agile climbers, capable of scaling steep terrain with ease."+promoLink, "https://relay.snort.social"),
			"2": jt("🎊 Feeding time! The CyberHerd has collected {new_amount} sats and the feeder has been activated. {difference_message} Did you know? {goat_name} represents the curious and intelligent nature of goats in general."+promoLink, "https://nostr-pub.wellorder.net"),
			"3": jt("🚀 Feeder activated with {new_amount} sats! CyberHerd members will receive their earned rewards. {difference_message} Interesting: Goats like {goat_name} have excellent memories and can recognize other goats and humans for years."+promoLink, "https://nostr-pub.wellorder.net"),
			"4": jt("⚡ CyberHerd feeding initiated! {new_amount} sats collected - treats being distributed now. {difference_message} Goat trivia: {goat_name} exemplifies how goats use their prehensile tongues to be selective eaters, often choosing the most nutritious parts of a plant."+promoLink, "https://relay.snort.social"),
		},
		CategoryFeedingRegular: {
			"0": "{display_name} received {new_amount} sats from CyberHerd distribution." + promoLink,
			"1": "Regular feeding: {display_name} has been credited with {new_amount} sats." + promoLink,
			"2": "⚡ CyberHerd payout: {new_amount} sats sent to {display_name}." + promoLink,
			"3": "Distribution complete: {display_name} received {new_amount} sats from the herd." + promoLink,
			"4": "Feeding reward: {new_amount} sats delivered to {display_name}." + promoLink,
		},
		CategoryFeedingBonus: {
			"0": "🎁 Bonus feeding! {display_name} received {new_amount} sats as a special reward." + promoLink,
			"1": "⚡ Special bonus: {display_name} has been credited with {new_amount} sats." + promoLink,
			"2": "🎊 Bonus distribution: {new_amount} sats sent to {display_name}." + promoLink,
			"3": "Extra reward: {display_name} received {new_amount} sats bonus from CyberHerd." + promoLink,
			"4": "🎉 Special feeding: {new_amount} sats bonus delivered to {display_name}." + promoLink,
		},
		CategoryFeedingRemainder: {
			"0": "📦 Remainder distribution: {display_name} received {new_amount} sats from remaining funds." + promoLink,
			"1": "Final payout: {display_name} has been credited with {new_amount} sats remainder." + promoLink,
			"2": "⚡ Remainder funds: {new_amount} sats sent to {display_name}." + promoLink,
			"3": "Leftover distribution: {display_name} received {new_amount} sats from remainder." + promoLink,
			"4": "Final distribution: {new_amount} sats remainder delivered to {display_name}." + promoLink,
		},
		CategoryFeedingFallback: {
			"0": "🔄 Fallback distribution: {display_name} received {new_amount} sats via predefined wallet." + promoLink,
			"1": "System fallback: {display_name} has been credited with {new_amount} sats." + promoLink,
			"2": "⚡ Fallback payout: {new_amount} sats sent to {display_name}." + promoLink,
			"3": "Predefined distribution: {display_name} received {new_amount} sats fallback." + promoLink,
			"4": "System distribution: {new_amount} sats fallback delivered to {display_name}." + promoLink,
		},
		CategoryInterfaceInfo: {
			"0": "🔧 System interface information: All systems operational. CyberHerd ready for contributions." + promoLink,
			"1": "ℹ️ Interface status: CyberHerd system is online and accepting payments." + promoLink,
			"2": "⚡ System check: All CyberHerd interfaces functioning normally." + promoLink,
			"3": "🔄 Status update: CyberHerd interface is active and ready." + promoLink,
			"4": "📊 System info: CyberHerd operational with all interfaces online." + promoLink,
		},
		CategoryKind6Repost: {
			"0": "{name} has joined the ⚡ CyberHerd ⚡ by reposting the herd note." + promoLink,
			"1": "Repost received: {name} is now running with the ⚡ CyberHerd ⚡." + promoLink,
			"2": "{name} boosted the signal and earned a spot in the ⚡ CyberHerd ⚡." + promoLink,
		},
		CategoryKind7Reaction: {
			"0": "{name} has joined the ⚡ CyberHerd ⚡ by reacting to the herd note." + promoLink,
			"1": "Reaction received: {name} is now part of the ⚡ CyberHerd ⚡." + promoLink,
			"2": "{name} sent a reaction and claimed a spot in the ⚡ CyberHerd ⚡." + promoLink,
		},
		CategoryKind6HeadbuttFail: {
			"0": "⚡headbutt⚡: {name} reposted the herd note, but the ⚡ CyberHerd ⚡ is full. A zap of {required_sats} sats or more would displace {victim_name}." + promoLink,
			"1": "⚡headbutt⚡: No room for {name}'s repost. Zapping more than {required_sats} sats takes {victim_name}'s spot." + promoLink,
		},
		CategoryKind7HeadbuttFail: {
			"0": "⚡headbutt⚡: {name} reacted to the herd note, but the ⚡ CyberHerd ⚡ is full. A zap of {required_sats} sats or more would displace {victim_name}." + promoLink,
			"1": "⚡headbutt⚡: No room for {name}'s reaction. Zapping more than {required_sats} sats takes {victim_name}'s spot." + promoLink,
		},
		CategoryZapperDisplaces6: {
			"0": "⚡headbutt⚡: {attacker_name} zapped {attacker_amount} sats and displaced {victim_name}'s repost from the ⚡ CyberHerd ⚡." + promoLink,
			"1": "⚡headbutt⚡: A {attacker_amount} sat zap from {attacker_name} has bumped {victim_name}'s repost out of the ⚡ CyberHerd ⚡." + promoLink,
		},
		CategoryZapperDisplaces7: {
			"0": "⚡headbutt⚡: {attacker_name} zapped {attacker_amount} sats and displaced {victim_name}'s reaction from the ⚡ CyberHerd ⚡." + promoLink,
			"1": "⚡headbutt⚡: A {attacker_amount} sat zap from {attacker_name} has bumped {victim_name}'s reaction out of the ⚡ CyberHerd ⚡." + promoLink,
		},
		CategorySatsReceived: {
			"0": "💰 Payment received: {new_amount} sats added to CyberHerd. {difference_message} Scientific fact: Goats, such as {goat_name}, have uniquely shaped rectangular pupils, which provide them a wide field of vision, aiding in predator detection." + promoLink,
			"1": "⚡ Contribution confirmed: {new_amount} sats received. {difference_message} Fun fact: {goat_name} and other goats are incredibly agile climbers, capable of scaling steep terrain with ease." + promoLink,
			"2": "💎 Payment processed: {new_amount} sats contributed. {difference_message} Did you know? {goat_name} represents the curious and intelligent nature of goats in general." + promoLink,
			"3": "🔥 Sats received: {new_amount} added to the pot. {difference_message} Interesting: Goats like {goat_name} have excellent memories and can recognize other goats and humans for years." + promoLink,
			"4": "⚡ CyberHerd grows: {new_amount} sats received. {difference_message} Goat trivia: {goat_name} exemplifies how goats use their prehensile tongues to selectively eat the most nutritious plants." + promoLink,
		},
	}
}
