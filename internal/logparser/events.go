package logparser

import (
	"time"

	"github.com/opsquad/supervisor/internal/ident"
)

// Kind is one of the canonical rule names.
type Kind string

const (
	KindPlayerConnected     Kind = "PLAYER_CONNECTED"
	KindPlayerDisconnected  Kind = "PLAYER_DISCONNECTED"
	KindPlayerJoinSucceeded Kind = "PLAYER_JOIN_SUCCEEDED"
	KindPlayerPossess       Kind = "PLAYER_POSSESS"
	KindPlayerUnpossess     Kind = "PLAYER_UNPOSSESS"
	KindPlayerDamaged       Kind = "PLAYER_DAMAGED"
	KindPlayerWounded       Kind = "PLAYER_WOUNDED"
	KindPlayerDied          Kind = "PLAYER_DIED"
	KindPlayerRevived       Kind = "PLAYER_REVIVED"
	KindDeployableDamaged   Kind = "DEPLOYABLE_DAMAGED"
	KindAdminBroadcast      Kind = "ADMIN_BROADCAST"
	KindNewGame             Kind = "NEW_GAME"
	KindRoundEnded          Kind = "ROUND_ENDED"
	KindRoundTickets        Kind = "ROUND_TICKETS"
	KindRoundWinner         Kind = "ROUND_WINNER"
	KindServerTickRate      Kind = "SERVER_TICK_RATE"
)

// CombatTarget identifies a participant in a damage/wound/death event. Victims
// are known only by name at the body-regex level (the game does not log a
// victim EOSID on damage); attackers carry online IDs when available.
type CombatTarget struct {
	Name       string
	Controller ident.PlayerController
	EOSID      ident.EOSID
	HasEOSID   bool
	SteamID    ident.SteamID
	HasSteamID bool
}

// Event is the parsed result of a single log line. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind    Kind
	Time    time.Time
	ChainID ident.ChainID

	// PLAYER_CONNECTED / PLAYER_JOIN_SUCCEEDED
	Controller ident.PlayerController
	IP         string
	EOSID      ident.EOSID
	HasEOSID   bool
	SteamID    ident.SteamID
	HasSteamID bool

	// PLAYER_POSSESS / PLAYER_UNPOSSESS
	PossessedClass string

	// Combat chain (PLAYER_DAMAGED / PLAYER_WOUNDED / PLAYER_DIED / PLAYER_REVIVED)
	Victim   CombatTarget
	Attacker CombatTarget
	Damage   float64
	Weapon   string

	// DEPLOYABLE_DAMAGED
	Deployable      string
	DamageType      string
	HealthRemaining float64

	// ADMIN_BROADCAST
	Message string
	From    string

	// NEW_GAME / ROUND_ENDED / ROUND_TICKETS / ROUND_WINNER
	Team       string
	Faction    string
	Subfaction string
	Action     string // "won" | "lost"
	Tickets    float64
	Layer      string
	Level      string

	// SERVER_TICK_RATE
	TickRate float64
}
