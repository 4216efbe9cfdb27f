package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opsquad/supervisor/internal/ident"
)

// IsChatSuspected applies a heuristic to decide whether an
// unsolicited frame body should be routed to ClassifyChat rather than treated as a
// command response fragment.
func IsChatSuspected(body string) bool {
	switch {
	case strings.HasPrefix(body, "[Chat"),
		strings.HasPrefix(body, "[Online"),
		strings.HasPrefix(body, "Remote admin"),
		strings.HasPrefix(body, "Kicked player"),
		strings.HasPrefix(body, "Banned player"),
		strings.Contains(body, "has created Squad"):
		return true
	default:
		return false
	}
}

var (
	chatMessageRe = regexp.MustCompile(`^\[(ChatAll|ChatTeam|ChatSquad|ChatAdmin)\] \[Online (?:Ids|IDs):(.+?)\] (.+?) : (.*)$`)
	adminCamRe    = regexp.MustCompile(`^\[Online (?:Ids|IDs):(.+?)\] (.+) has (possessed|unpossessed) admin camera\.$`)
	warnedRe      = regexp.MustCompile(`^Remote admin has warned player (.+)\. Message was "(.*)"$`)
	kickedRe      = regexp.MustCompile(`^Kicked player (\d+)\. \[Online IDs=(.+?)\] (.+)$`)
	bannedRe      = regexp.MustCompile(`^Banned player (\d+)\. \[Online IDs=(.+?)\] (.+) for interval (.+)$`)
	squadCreatedRe = regexp.MustCompile(`^(.+) \(Online IDs:(.+?)\) has created Squad (\d+) \(Squad Name: (.+)\) on (.+)$`)

	chatChannelByTag = map[string]ChatChannel{
		"ChatAll":   ChatAll,
		"ChatTeam":  ChatTeam,
		"ChatSquad": ChatSquad,
		"ChatAdmin": ChatAdmin,
	}
)

// ClassifyChat tries each unsolicited-chat pattern in the fixed order of
// the identity-event rule table and returns the first that matches. It reports ok=false when no
// pattern matches, and reports an event with IDs.Invalid set when the identity
// region carried the literal "INVALID" marker — such events must be dropped by the
// caller.
func ClassifyChat(body string) (ev ChatEvent, ok bool) {
	if m := chatMessageRe.FindStringSubmatch(body); m != nil {
		ids := parseOnlineIDs(m[2])
		return ChatEvent{
			Kind:       EventChatMessage,
			Channel:    chatChannelByTag[m[1]],
			PlayerName: m[3],
			Message:    m[4],
			IDs:        ids,
		}, true
	}

	if m := adminCamRe.FindStringSubmatch(body); m != nil {
		ids := parseOnlineIDs(m[1])
		kind := EventAdminCamEntered
		if m[3] == "unpossessed" {
			kind = EventAdminCamExited
		}
		return ChatEvent{Kind: kind, PlayerName: m[2], IDs: ids}, true
	}

	if m := warnedRe.FindStringSubmatch(body); m != nil {
		return ChatEvent{Kind: EventPlayerWarned, PlayerName: m[1], WarnReason: m[2]}, true
	}

	if m := bannedRe.FindStringSubmatch(body); m != nil {
		idx, _ := strconv.Atoi(m[1])
		ids := parseOnlineIDs(m[2])
		return ChatEvent{Kind: EventPlayerBanned, PlayerIndex: idx, PlayerName: m[3], BanInterval: m[4], IDs: ids}, true
	}

	if m := kickedRe.FindStringSubmatch(body); m != nil {
		idx, _ := strconv.Atoi(m[1])
		ids := parseOnlineIDs(m[2])
		return ChatEvent{Kind: EventPlayerKicked, PlayerIndex: idx, PlayerName: m[3], IDs: ids}, true
	}

	if m := squadCreatedRe.FindStringSubmatch(body); m != nil {
		ids := parseOnlineIDs(m[2])
		sqID, _ := ident.NewSquadID(atoiOrZero(m[3]))
		return ChatEvent{
			Kind:      EventSquadCreated,
			PlayerName: m[1],
			IDs:       ids,
			SquadID:   sqID,
			SquadName: m[4],
			TeamName:  m[5],
		}, true
	}

	return ChatEvent{}, false
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
