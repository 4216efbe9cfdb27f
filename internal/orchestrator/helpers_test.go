package orchestrator

import (
	"testing"

	"github.com/opsquad/supervisor/internal/correlate"
	"github.com/opsquad/supervisor/internal/ident"
	"github.com/opsquad/supervisor/internal/logparser"
	"github.com/opsquad/supervisor/internal/logsource"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

func localConfig(path string) logsource.LocalConfig {
	return logsource.LocalConfig{FilePath: path, ReadFromStart: true}
}

func mustEOSID(t *testing.T, s string) ident.EOSID {
	t.Helper()
	id, ok := ident.NewEOSID(s)
	if !ok {
		t.Fatalf("invalid test EOSID fixture %q", s)
	}
	return id
}

func mustTeamID(t *testing.T, n int) ident.TeamID {
	t.Helper()
	id, ok := ident.NewTeamID(n)
	if !ok {
		t.Fatalf("invalid test TeamID fixture %d", n)
	}
	return id
}

func seedPlayer(o *Orchestrator, eos ident.EOSID, name string) {
	o.Players.UpdateFromRCON([]parser.Player{
		{EOSID: eos, Name: name},
	}, func(ident.EOSID) bool { return false }, false)
}

func seedPlayerWithTeam(o *Orchestrator, eos ident.EOSID, name string, teamID ident.TeamID) {
	o.Players.UpdateFromRCON([]parser.Player{
		{EOSID: eos, Name: name, TeamID: teamID, HasTeamID: true},
	}, func(ident.EOSID) bool { return false }, false)
}

func targetWithEOSID(eos ident.EOSID) logparser.CombatTarget {
	return logparser.CombatTarget{EOSID: eos, HasEOSID: true}
}

func targetWithName(name string) logparser.CombatTarget {
	return logparser.CombatTarget{Name: name}
}

func blankTarget() logparser.CombatTarget {
	return logparser.CombatTarget{}
}

func participantWithEOSID(eos ident.EOSID, name string) correlate.CombatParticipant {
	return correlate.CombatParticipant{Name: name, EOSID: eos, HasEOSID: true}
}
