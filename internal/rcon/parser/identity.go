package parser

import (
	"regexp"
	"strings"

	"github.com/opsquad/supervisor/internal/ident"
)

var (
	eosTokenRe   = regexp.MustCompile(`(?i)eos:\s*([0-9a-f]{32}|invalid)`)
	steamTokenRe = regexp.MustCompile(`(?i)steam:\s*(\d{17}|invalid)`)
)

// parseOnlineIDs extracts the {EOS, Steam} identity pair from a fragment such as
// "Online IDs: EOS: 0002a1... steam: 765611..." or "Online Ids:EOS: ... steam: ...",
// tolerating the "Ids"/"IDs" case variance (handled as two literal patterns in the
// caller rather than normalized here), whitespace variance, either platform being
// absent, and the literal "INVALID" marker.
func parseOnlineIDs(fragment string) OnlineIDs {
	var out OnlineIDs

	if m := eosTokenRe.FindStringSubmatch(fragment); m != nil {
		if strings.EqualFold(m[1], "invalid") {
			out.Invalid = true
		} else if eos, ok := ident.NewEOSID(m[1]); ok {
			out.EOSID, out.HasEOSID = eos, true
		}
	}

	if m := steamTokenRe.FindStringSubmatch(fragment); m != nil {
		if strings.EqualFold(m[1], "invalid") {
			out.Invalid = true
		} else if sid, ok := ident.NewSteamID(m[1]); ok {
			out.SteamID, out.HasSteamID = sid, true
		}
	}

	return out
}
