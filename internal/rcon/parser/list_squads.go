package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opsquad/supervisor/internal/ident"
)

var (
	squadTeamHeaderRe = regexp.MustCompile(`^Team ID: (\d) \((.+)\)$`)
	squadLineRe       = regexp.MustCompile(
		`^ID: (\d+) \| Name: (.+) \| Size: (\d+) \| Locked: (True|False) \| Creator Name: (.+) \| Creator Online IDs:(.+)$`,
	)
)

// ParseListSquads parses a ListSquads RCON response body into typed rows:
// blocks of squad lines under a "Team ID: N (TeamName)"
// header line.
func ParseListSquads(body string) ([]Squad, error) {
	var (
		squads        []Squad
		teamID        ident.TeamID
		teamName      string
		haveTeam      bool
	)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if line == "" {
			continue
		}

		if m := squadTeamHeaderRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				if tid, ok := ident.NewTeamID(n); ok {
					teamID, teamName, haveTeam = tid, m[2], true
				}
			}
			continue
		}

		m := squadLineRe.FindStringSubmatch(line)
		if m == nil || !haveTeam {
			continue
		}

		var sq Squad
		sq.TeamID = teamID
		sq.TeamName = teamName

		if n, err := strconv.Atoi(m[1]); err == nil {
			if sqid, ok := ident.NewSquadID(n); ok {
				sq.SquadID = sqid
			}
		}
		sq.Name = m[2]
		if n, err := strconv.Atoi(m[3]); err == nil {
			sq.Size = n
		}
		sq.Locked = m[4] == "True"
		sq.CreatorName = m[5]

		ids := parseOnlineIDs(m[6])
		if ids.Invalid {
			continue
		}
		sq.CreatorEOSID = ids.EOSID
		if ids.HasSteamID {
			sq.CreatorSteamID, sq.HasCreatorSteam = ids.SteamID, true
		}

		squads = append(squads, sq)
	}

	return squads, nil
}
