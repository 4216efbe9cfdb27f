package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opsquad/supervisor/internal/ident"
)

var listPlayersLineRe = regexp.MustCompile(
	`^ID: (\d+) \| Online IDs:(.+?) \| Name: (.+) \| Team ID: (\d+|N/A) \| Squad ID: (\d+|N/A) \| Is Leader: (True|False) \| Role: (.*)$`,
)

// ParseListPlayers parses a ListPlayers RCON response body into typed rows.
// Lines that don't match the shape are skipped, silently dropping unparseable rows
// within a multi-line response rather than failing the whole batch.
func ParseListPlayers(body string) ([]Player, error) {
	var players []Player
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := listPlayersLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		var p Player
		if n, err := strconv.Atoi(m[1]); err == nil {
			if pid, ok := ident.NewPlayerID(n); ok {
				p.PlayerID = pid
			}
		}

		ids := parseOnlineIDs(m[2])
		if ids.Invalid {
			continue
		}
		p.EOSID = ids.EOSID
		if ids.HasSteamID {
			p.SteamID, p.HasSteamID = ids.SteamID, true
		}

		p.Name = m[3]

		if m[4] != "N/A" {
			if n, err := strconv.Atoi(m[4]); err == nil {
				if tid, ok := ident.NewTeamID(n); ok {
					p.TeamID, p.HasTeamID = tid, true
				}
			}
		}

		if m[5] != "N/A" {
			if n, err := strconv.Atoi(m[5]); err == nil {
				if sqid, ok := ident.NewSquadID(n); ok {
					p.SquadID, p.HasSquadID = sqid, true
				}
			}
		}

		p.IsLeader = m[6] == "True"
		p.Role = m[7]

		players = append(players, p)
	}
	return players, nil
}
