package orchestrator

import (
	"github.com/opsquad/supervisor/internal/ident"
	"github.com/opsquad/supervisor/internal/rcon/parser"
	"github.com/opsquad/supervisor/internal/state"
)

// Player looks up a tracked player by eosID.
func (o *Orchestrator) Player(id ident.EOSID) (parser.Player, bool) {
	return o.Players.ByEOSID(id)
}

// PlayerList returns a snapshot of every tracked player.
func (o *Orchestrator) PlayerList() []parser.Player {
	return o.Players.Snapshot()
}

// Squad looks up a tracked squad by team and squad ID.
func (o *Orchestrator) Squad(teamID ident.TeamID, squadID ident.SquadID) (parser.Squad, bool) {
	return o.Squads.Get(teamID, squadID)
}

// SquadList returns a snapshot of every tracked squad.
func (o *Orchestrator) SquadList() []parser.Squad {
	return o.Squads.Snapshot()
}

// CurrentLayer returns the current map, if known.
func (o *Orchestrator) CurrentLayer() (parser.MapInfo, bool) {
	return o.Layers.Current()
}

// NextLayer returns the voted next map, if known.
func (o *Orchestrator) NextLayer() (parser.MapInfo, bool) {
	return o.Layers.Next()
}

// HasPermission reports whether identity's admin group grants perm.
func (o *Orchestrator) HasPermission(identity Identity, perm string) bool {
	return o.Admins.HasPermission(identity, perm)
}

// Identity re-exports state.Identity so callers need not import internal/state
// directly for this one type.
type Identity = state.Identity
