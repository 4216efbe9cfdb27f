// Package correlate implements the event correlation store (C8): an
// in-memory, single-threaded set of transient maps that stitch related log
// lines together into the higher-level events the rest of the system cares
// about. Grounded on internal/logwatcher_manager/event_store.go's
// StoreJoinRequest/GetJoinRequest, StoreSessionData/GetSessionData and
// StoreWonData/GetWonData correlation logic, reimplemented over plain Go maps
// instead of Valkey keys — the core does not persist state across restarts,
// so correlation state that outlives the process has no home here.
package correlate

import (
	"sync"
	"time"

	"github.com/opsquad/supervisor/internal/ident"
	"github.com/opsquad/supervisor/internal/logparser"
)

// JoinRequest is the transient record created on PLAYER_CONNECTED and
// consumed on the matching PLAYER_JOIN_SUCCEEDED.
type JoinRequest struct {
	ChainID    ident.ChainID
	EOSID      ident.EOSID
	HasEOSID   bool
	SteamID    ident.SteamID
	HasSteamID bool
	Controller ident.PlayerController
	IP         string
	Timestamp  time.Time
}

// CombatParticipant is a damage/wound/death participant as known from the
// combat log lines, which only reliably name the victim and carry the
// attacker's identity.
type CombatParticipant struct {
	Name       string
	Controller ident.PlayerController
	EOSID      ident.EOSID
	HasEOSID   bool
	SteamID    ident.SteamID
	HasSteamID bool
}

// CombatSession is the transient, victim-name-keyed record spanning a
// damage -> wound -> death sequence.
type CombatSession struct {
	ChainID    ident.ChainID
	Victim     CombatParticipant
	LastDamage *DamageInfo
	LastWound  *WoundInfo
}

// DamageInfo is the most recent PLAYER_DAMAGED data recorded for a session.
type DamageInfo struct {
	Damage   float64
	Weapon   string
	Attacker CombatParticipant
	Time     time.Time
}

// WoundInfo is the most recent PLAYER_WOUNDED data recorded for a session.
type WoundInfo struct {
	Damage   float64
	Weapon   string
	Attacker CombatParticipant
	Time     time.Time
}

// RoundResult is the transient singleton set by ROUND_WINNER and consumed by
// the following NEW_GAME.
type RoundResult struct {
	Team       string
	Faction    string
	Subfaction string
	Tickets    float64
	Layer      string
	Level      string
}

// JoinSucceeded is the merged event emitted when a JoinRequest is consumed by
// a matching PLAYER_JOIN_SUCCEEDED, carrying the full player tuple instead of
// the bare chain-id correlation the log alone provides.
type JoinSucceeded struct {
	ChainID    ident.ChainID
	EOSID      ident.EOSID
	HasEOSID   bool
	SteamID    ident.SteamID
	HasSteamID bool
	Controller ident.PlayerController
	IP         string
	Suffix     string
}

// Death is the merged event emitted when a CombatSession is consumed by a
// PLAYER_DIED line, carrying the most recent damage and wound data plus the
// computed teamkill flag.
type Death struct {
	Victim     CombatParticipant
	Attacker   CombatParticipant
	Damage     float64
	Weapon     string
	Teamkill   bool
	HasSession bool
}

// TeamLookup resolves a combat participant's current team, used only to
// compute the teamkill flag at death time. The correlation store has no
// player map of its own (that lives in the state services, C11); the
// orchestrator supplies this function bound to the live player service,
// resolving by EOSID when the participant has one (always true for
// attackers) and falling back to a name lookup otherwise (always true for
// victims, since the combat log never carries a victim EOSID).
type TeamLookup func(p CombatParticipant) (teamID ident.TeamID, ok bool)

// Store is the single-threaded correlation store. All methods are intended
// to be called from the single goroutine driving the log parser; the mutex
// exists only to make concurrent reads from other goroutines (e.g. a
// diagnostics endpoint) safe, not to support concurrent correlation.
type Store struct {
	mu sync.Mutex

	joinRequests   map[ident.ChainID]JoinRequest
	combatSessions map[string]CombatSession
	disconnected   map[ident.EOSID]struct{}
	roundResult    *RoundResult
}

// New constructs an empty correlation store.
func New() *Store {
	return &Store{
		joinRequests:   make(map[ident.ChainID]JoinRequest),
		combatSessions: make(map[string]CombatSession),
		disconnected:   make(map[ident.EOSID]struct{}),
	}
}

// RecordJoinRequest stores a JoinRequest keyed by chain-id, per
// PLAYER_CONNECTED.
func (s *Store) RecordJoinRequest(ev logparser.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.joinRequests[ev.ChainID] = JoinRequest{
		ChainID:    ev.ChainID,
		EOSID:      ev.EOSID,
		HasEOSID:   ev.HasEOSID,
		SteamID:    ev.SteamID,
		HasSteamID: ev.HasSteamID,
		Controller: ev.Controller,
		IP:         ev.IP,
		Timestamp:  ev.Time,
	}
}

// ConsumeJoinSucceeded matches a PLAYER_JOIN_SUCCEEDED line against a
// recorded JoinRequest by chain-id, returning the merged result. ok is false
// when no request with this chain-id is pending, in which case the line
// carries no useful player tuple and the caller should drop it.
func (s *Store) ConsumeJoinSucceeded(ev logparser.Event, suffix string) (JoinSucceeded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.joinRequests[ev.ChainID]
	if !ok {
		return JoinSucceeded{}, false
	}
	delete(s.joinRequests, ev.ChainID)

	return JoinSucceeded{
		ChainID:    req.ChainID,
		EOSID:      req.EOSID,
		HasEOSID:   req.HasEOSID,
		SteamID:    req.SteamID,
		HasSteamID: req.HasSteamID,
		Controller: req.Controller,
		IP:         req.IP,
		Suffix:     suffix,
	}, true
}

// RecordDamage upserts the CombatSession for ev.Victim.Name with the latest
// damage info, per PLAYER_DAMAGED.
func (s *Store) RecordDamage(ev logparser.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.combatSessions[ev.Victim.Name]
	session.ChainID = ev.ChainID
	session.Victim = CombatParticipant{Name: ev.Victim.Name}
	session.LastDamage = &DamageInfo{
		Damage: ev.Damage,
		Weapon: ev.Weapon,
		Attacker: CombatParticipant{
			Name:       ev.Attacker.Name,
			Controller: ev.Attacker.Controller,
			EOSID:      ev.Attacker.EOSID,
			HasEOSID:   ev.Attacker.HasEOSID,
			SteamID:    ev.Attacker.SteamID,
			HasSteamID: ev.Attacker.HasSteamID,
		},
		Time: ev.Time,
	}
	s.combatSessions[ev.Victim.Name] = session
}

// RecordWound enriches an existing CombatSession with wound info, per
// PLAYER_WOUNDED. If no session exists yet (the damage line was dropped or
// never arrived), a new one is created so the death event still carries
// whatever wound data is available.
func (s *Store) RecordWound(ev logparser.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.combatSessions[ev.Victim.Name]
	if !exists {
		session.ChainID = ev.ChainID
		session.Victim = CombatParticipant{Name: ev.Victim.Name}
	}
	session.LastWound = &WoundInfo{
		Damage: ev.Damage,
		Weapon: ev.Weapon,
		Attacker: CombatParticipant{
			Name:       ev.Attacker.Name,
			Controller: ev.Attacker.Controller,
			EOSID:      ev.Attacker.EOSID,
			HasEOSID:   ev.Attacker.HasEOSID,
			SteamID:    ev.Attacker.SteamID,
			HasSteamID: ev.Attacker.HasSteamID,
		},
		Time: ev.Time,
	}
	s.combatSessions[ev.Victim.Name] = session
}

// ConsumeDeath matches a PLAYER_DIED line against the victim's CombatSession,
// merging in the most recent damage and wound data and computing the
// teamkill flag, then deletes the session. lookup resolves a participant's
// current team; a lookup failure for either side is treated like "no team
// known" and the teamkill flag is left false rather than guessed.
func (s *Store) ConsumeDeath(ev logparser.Event, lookup TeamLookup) Death {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.combatSessions[ev.Victim.Name]
	delete(s.combatSessions, ev.Victim.Name)

	death := Death{
		Victim:     CombatParticipant{Name: ev.Victim.Name},
		HasSession: exists,
	}

	if exists && session.LastDamage != nil {
		death.Attacker = session.LastDamage.Attacker
		death.Damage = session.LastDamage.Damage
		death.Weapon = session.LastDamage.Weapon
	}
	// Wound data, being the more proximate cause, overrides stale damage data
	// when present, using a "most recent wins" merge.
	if exists && session.LastWound != nil {
		death.Attacker = session.LastWound.Attacker
		if session.LastWound.Damage > 0 {
			death.Damage = session.LastWound.Damage
		}
		if session.LastWound.Weapon != "" {
			death.Weapon = session.LastWound.Weapon
		}
	}

	death.Teamkill = computeTeamkill(death.Victim, death.Attacker, lookup)

	return death
}

// computeTeamkill implements attacker.teamID == victim.teamID && attacker !=
// victim; suicide (attacker == victim or attacker absent) never counts as a
// teamkill. A lookup miss on either side (e.g. the attacker already
// disconnected) is treated as "unknown" rather than guessed, so the flag
// stays false.
func computeTeamkill(victim, attacker CombatParticipant, lookup TeamLookup) bool {
	if !attacker.HasEOSID && !attacker.HasSteamID && attacker.Controller.IsZero() {
		return false
	}
	if attacker.Name != "" && attacker.Name == victim.Name {
		return false
	}
	if lookup == nil {
		return false
	}
	victimTeam, vok := lookup(victim)
	attackerTeam, aok := lookup(attacker)
	if !vok || !aok {
		return false
	}
	return victimTeam == attackerTeam
}

// MarkDisconnected records a player as disconnected, per PLAYER_DISCONNECTED.
// The player stays addressable (e.g. a reconnect before the next map change
// still resolves) until ClearOnNewGame runs.
func (s *Store) MarkDisconnected(eosID ident.EOSID) {
	if eosID.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected[eosID] = struct{}{}
}

// IsDisconnected reports whether eosID has been marked disconnected since the
// last NEW_GAME.
func (s *Store) IsDisconnected(eosID ident.EOSID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.disconnected[eosID]
	return ok
}

// DisconnectedSnapshot returns the current disconnected-set as a slice, for
// the player service's removal pass.
func (s *Store) DisconnectedSnapshot() []ident.EOSID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ident.EOSID, 0, len(s.disconnected))
	for id := range s.disconnected {
		out = append(out, id)
	}
	return out
}

// RecordRoundWinner stores the winning team and layer, per ROUND_WINNER. A
// second ROUND_WINNER before the next NEW_GAME overwrites these fields, since
// only "the previous round" (singular) is ever consumed; faction, subfaction,
// tickets and level are left to RecordRoundTickets, which is the only rule
// that carries them.
func (s *Store) RecordRoundWinner(ev logparser.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roundResult == nil {
		s.roundResult = &RoundResult{}
	}
	s.roundResult.Team = ev.Team
	s.roundResult.Layer = ev.Layer
}

// RecordRoundTickets folds the winning team's ROUND_TICKETS line into the
// pending RoundResult; it is the only rule carrying faction, subfaction,
// tickets and level. The losing team's line (Action == "lost") is ignored
// since RoundResult models the winner only.
func (s *Store) RecordRoundTickets(ev logparser.Event) {
	if ev.Action != "won" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roundResult == nil {
		s.roundResult = &RoundResult{}
	}
	s.roundResult.Team = ev.Team
	s.roundResult.Faction = ev.Faction
	s.roundResult.Subfaction = ev.Subfaction
	s.roundResult.Tickets = ev.Tickets
	s.roundResult.Layer = ev.Layer
	s.roundResult.Level = ev.Level
}

// ConsumeNewGame clears the session store, join requests and disconnected
// set, and returns the pending RoundResult (nil if ROUND_WINNER never fired
// this round). This is the single reset point guaranteeing that after
// NEW_GAME delivery the store holds zero CombatSessions, zero JoinRequests,
// and zero disconnected markers.
func (s *Store) ConsumeNewGame() *RoundResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.roundResult
	s.roundResult = nil
	s.joinRequests = make(map[ident.ChainID]JoinRequest)
	s.combatSessions = make(map[string]CombatSession)
	s.disconnected = make(map[ident.EOSID]struct{})

	return result
}
