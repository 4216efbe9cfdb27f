package orchestrator

import (
	"github.com/opsquad/supervisor/internal/correlate"
	"github.com/opsquad/supervisor/internal/ident"
	"github.com/opsquad/supervisor/internal/logparser"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

// Event names the orchestrator emits on its bus for log-derived activity, in
// addition to re-emitting the raw logparser.Kind names for events that need
// no enrichment.
const (
	EventPlayerJoined     = "PLAYER_JOINED"
	EventPlayerPossession = "PLAYER_POSSESSION_CHANGED"
	EventCombat           = "PLAYER_COMBAT"
	EventPlayerDied       = "PLAYER_DIED_ENRICHED"
	EventRoundEnded       = "ROUND_ENDED_ENRICHED"
)

// PossessionChanged is the enriched payload of EventPlayerPossession.
type PossessionChanged struct {
	Kind           logparser.Kind
	Player         parser.Player
	PossessedClass string
}

// CombatEvent is the enriched payload of EventCombat, covering
// PLAYER_DAMAGED / PLAYER_WOUNDED / PLAYER_REVIVED.
type CombatEvent struct {
	Kind        logparser.Kind
	Victim      parser.Player
	Attacker    parser.Player
	HasAttacker bool
	Damage      float64
	Weapon      string
}

// PlayerDied is the enriched payload of EventPlayerDied, merging the
// correlation store's session data with the enriched player records.
type PlayerDied struct {
	Victim      parser.Player
	Attacker    parser.Player
	HasAttacker bool
	Damage      float64
	Weapon      string
	Teamkill    bool
}

// RoundEnded is the enriched payload of EventRoundEnded: the previous round's
// result (if one was ever recorded) alongside the new layer.
type RoundEnded struct {
	Previous *correlate.RoundResult
	NewGame  logparser.Event
}

func (o *Orchestrator) handleLogEvent(ev logparser.Event) {
	switch ev.Kind {
	case logparser.KindPlayerConnected:
		o.store.RecordJoinRequest(ev)
		o.bus.Emit(string(ev.Kind), ev)

	case logparser.KindPlayerJoinSucceeded:
		joined, ok := o.store.ConsumeJoinSucceeded(ev, ev.Message)
		if !ok {
			return
		}
		o.bus.Emit(EventPlayerJoined, joined)

	case logparser.KindPlayerDisconnected:
		if ev.HasEOSID {
			o.store.MarkDisconnected(ev.EOSID)
		}
		o.bus.Emit(string(ev.Kind), ev)

	case logparser.KindPlayerPossess, logparser.KindPlayerUnpossess:
		p, ok := o.resolveSubject(ev.Attacker)
		if !ok {
			return
		}
		o.bus.Emit(EventPlayerPossession, PossessionChanged{Kind: ev.Kind, Player: p, PossessedClass: ev.PossessedClass})

	case logparser.KindPlayerDamaged:
		o.store.RecordDamage(ev)
		o.emitCombat(ev)

	case logparser.KindPlayerWounded:
		o.store.RecordWound(ev)
		o.emitCombat(ev)

	case logparser.KindPlayerRevived:
		o.emitCombat(ev)

	case logparser.KindPlayerDied:
		death := o.store.ConsumeDeath(ev, o.teamLookup)
		victim, ok := o.resolveSubject(ev.Victim)
		if !ok {
			return
		}
		attacker, hasAttacker := o.resolveSubject(ev.Attacker)
		o.bus.Emit(EventPlayerDied, PlayerDied{
			Victim: victim, Attacker: attacker, HasAttacker: hasAttacker,
			Damage: death.Damage, Weapon: death.Weapon, Teamkill: death.Teamkill,
		})

	case logparser.KindRoundWinner:
		o.store.RecordRoundWinner(ev)
		o.bus.Emit(string(ev.Kind), ev)

	case logparser.KindRoundTickets:
		o.store.RecordRoundTickets(ev)
		o.bus.Emit(string(ev.Kind), ev)

	case logparser.KindNewGame:
		o.pendingMapChange.Store(true)
		previous := o.store.ConsumeNewGame()
		o.bus.Emit(EventRoundEnded, RoundEnded{Previous: previous, NewGame: ev})

	default:
		o.bus.Emit(string(ev.Kind), ev)
	}
}

func (o *Orchestrator) emitCombat(ev logparser.Event) {
	victim, ok := o.resolveSubject(ev.Victim)
	if !ok {
		return
	}
	attacker, hasAttacker := o.resolveSubject(ev.Attacker)
	o.bus.Emit(EventCombat, CombatEvent{
		Kind: ev.Kind, Victim: victim, Attacker: attacker, HasAttacker: hasAttacker,
		Damage: ev.Damage, Weapon: ev.Weapon,
	})
}

// resolveSubject enriches a CombatTarget into the full Player record the
// player service holds. A target carrying no identity at all (no EOSID and
// no name) resolves to ok=false without being a failure — some targets are
// legitimately absent (e.g. no reviver). A target that DOES name a player
// (by EOSID or by name) but cannot be found is also ok=false: an event about
// an unknown player is dropped rather than delivered with null fields, most
// commonly a combat attacker who has since disconnected.
func (o *Orchestrator) resolveSubject(target logparser.CombatTarget) (parser.Player, bool) {
	if target.HasEOSID {
		return o.Players.ByEOSID(target.EOSID)
	}
	if target.Name != "" {
		return o.Players.ByName(target.Name)
	}
	return parser.Player{}, false
}

// teamLookup adapts the player service into the correlate.TeamLookup shape.
func (o *Orchestrator) teamLookup(p correlate.CombatParticipant) (ident.TeamID, bool) {
	player, ok := o.resolveSubject(logparser.CombatTarget{
		Name: p.Name, EOSID: p.EOSID, HasEOSID: p.HasEOSID,
	})
	if !ok || !player.HasTeamID {
		return 0, false
	}
	return player.TeamID, true
}
