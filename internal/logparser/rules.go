package logparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opsquad/supervisor/internal/ident"
)

// Rule is one entry of the rule table: a body regex matched against the
// portion of the line following the timestamp/chain-id prefix, and a builder
// invoked on the first match. A builder returning ok=false silently discards
// the line (the rule matched but carries no event worth emitting, e.g. a
// self-issued RCON broadcast).
//
// Build only fills in the Kind-specific fields; Kind, Time and ChainID are
// stamped onto the result by Parser.Parse once a rule matches.
type Rule struct {
	Name  string
	Body  *regexp.Regexp
	Build func(m []string) (Event, bool)
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func onlineIDs(eos, steam string) (e ident.EOSID, hasEOS bool, s ident.SteamID, hasSteam bool) {
	if eos != "" {
		e, hasEOS = ident.NewEOSID(eos)
	}
	if steam != "" {
		s, hasSteam = ident.NewSteamID(steam)
	}
	return
}

// DefaultRules returns the canonical rule set, in match priority order.
// Grounded on a log-watcher's
// regex bodies (timestamp/chain-id group trimmed, since the prefix is already
// split out by splitPrefix).
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: string(KindPlayerConnected),
			Body: regexp.MustCompile(`^LogSquad: PostLogin: NewPlayer: BP_PlayerController_C .+PersistentLevel\.([^\s]+) \(IP: ([\d.]+) \| Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)`),
			Build: func(m []string) (Event, bool) {
				ctrl, ok := ident.NewPlayerController(m[1])
				if !ok {
					return Event{}, false
				}
				eos, hasEOS, steam, hasSteam := onlineIDs(m[3], m[4])
				return Event{Controller: ctrl, IP: m[2], EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam}, true
			},
		},
		{
			Name: string(KindPlayerDisconnected),
			Body: regexp.MustCompile(`^LogNet: UChannel::Close: Sending CloseBunch.*UniqueId: (?:EOS:)?([0-9a-fA-F]{32})?`),
			Build: func(m []string) (Event, bool) {
				eos, hasEOS, _, _ := onlineIDs(m[1], "")
				return Event{EOSID: eos, HasEOSID: hasEOS}, true
			},
		},
		{
			Name: string(KindPlayerJoinSucceeded),
			Body: regexp.MustCompile(`^LogNet: Join succeeded: (.+)`),
			Build: func(m []string) (Event, bool) {
				return Event{Message: m[1]}, true
			},
		},
		{
			Name: string(KindPlayerPossess),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQPlayerController::)?OnPossess\(\): PC=(.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\) Pawn=([A-Za-z0-9_]+)_C`),
			Build: func(m []string) (Event, bool) {
				eos, hasEOS, steam, hasSteam := onlineIDs(m[2], m[3])
				return Event{
					Attacker:       CombatTarget{Name: m[1], EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam},
					PossessedClass: m[4],
				}, true
			},
		},
		{
			Name: string(KindPlayerUnpossess),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQPlayerController::)?OnUnPossess\(\): PC=(.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)`),
			Build: func(m []string) (Event, bool) {
				eos, hasEOS, steam, hasSteam := onlineIDs(m[2], m[3])
				return Event{Attacker: CombatTarget{Name: m[1], EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam}}, true
			},
		},
		{
			Name: string(KindPlayerDamaged),
			Body: regexp.MustCompile(`^LogSquad: Player:(.+) ActualDamage=([0-9.]+) from (.+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\|\s*Player Controller ID: ([^ )]+)\)caused by ([A-Za-z0-9_-]+)_C`),
			Build: func(m []string) (Event, bool) {
				if strings.Contains(m[4], "INVALID") || strings.Contains(m[5], "INVALID") {
					return Event{}, false
				}
				eos, hasEOS, steam, hasSteam := onlineIDs(m[4], m[5])
				ctrl, _ := ident.NewPlayerController(m[6])
				return Event{
					Victim:   CombatTarget{Name: m[1]},
					Damage:   atof(m[2]),
					Attacker: CombatTarget{Name: m[3], EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam, Controller: ctrl},
					Weapon:   m[7],
				}, true
			},
		},
		{
			Name: string(KindPlayerWounded),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQSoldier::)?Wound\(\): Player:(.+) KillingDamage=(?:-)*([0-9.]+) from ([A-Za-z0-9_]+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\| Controller ID: ([\w\d]+)\) caused by ([A-Za-z0-9_-]+)_C`),
			Build: func(m []string) (Event, bool) {
				if strings.Contains(m[4], "INVALID") {
					return Event{}, false
				}
				eos, hasEOS, steam, hasSteam := onlineIDs(m[4], m[5])
				ctrl, _ := ident.NewPlayerController(m[3])
				return Event{
					Victim:   CombatTarget{Name: m[1]},
					Damage:   atof(m[2]),
					Attacker: CombatTarget{EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam, Controller: ctrl},
					Weapon:   m[7],
				}, true
			},
		},
		{
			Name: string(KindPlayerDied),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQSoldier::)?Die\(\): Player:(.+) KillingDamage=(?:-)*([0-9.]+) from ([A-Za-z0-9_]+) \(Online IDs:(?: EOS: ([^ )|]+))?(?: steam: ([^ )|]+))?\s*\| Contoller ID: ([\w\d]+)\) caused by ([A-Za-z0-9_-]+)_C`),
			Build: func(m []string) (Event, bool) {
				if strings.Contains(m[4], "INVALID") {
					return Event{}, false
				}
				eos, hasEOS, steam, hasSteam := onlineIDs(m[4], m[5])
				ctrl, _ := ident.NewPlayerController(m[3])
				return Event{
					Victim:   CombatTarget{Name: m[1]},
					Damage:   atof(m[2]),
					Attacker: CombatTarget{EOSID: eos, HasEOSID: hasEOS, SteamID: steam, HasSteamID: hasSteam, Controller: ctrl},
					Weapon:   m[7],
				}, true
			},
		},
		{
			Name: string(KindPlayerRevived),
			Body: regexp.MustCompile(`^LogSquad: (.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\) has revived (.+) \(Online IDs:(?: EOS: ([^ )]+))?(?: steam: ([^ )]+))?\)\.`),
			Build: func(m []string) (Event, bool) {
				aEOS, aHasEOS, aSteam, aHasSteam := onlineIDs(m[2], m[3])
				vEOS, vHasEOS, vSteam, vHasSteam := onlineIDs(m[5], m[6])
				return Event{
					Attacker: CombatTarget{Name: m[1], EOSID: aEOS, HasEOSID: aHasEOS, SteamID: aSteam, HasSteamID: aHasSteam},
					Victim:   CombatTarget{Name: m[4], EOSID: vEOS, HasEOSID: vHasEOS, SteamID: vSteam, HasSteamID: vHasSteam},
				}, true
			},
		},
		{
			Name: string(KindDeployableDamaged),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQDeployable::)?TakeDamage\(\): ([A-Za-z0-9_]+)_C_[0-9]+: ([0-9.]+) damage attempt by causer ([A-Za-z0-9_]+)_C_[0-9]+ instigator (.+) with damage type ([A-Za-z0-9_]+)_C health remaining ([0-9.]+)`),
			Build: func(m []string) (Event, bool) {
				return Event{
					Deployable:      m[1],
					Damage:          atof(m[2]),
					Attacker:        CombatTarget{Name: m[4]},
					DamageType:      m[5],
					HealthRemaining: atof(m[6]),
				}, true
			},
		},
		{
			Name: string(KindAdminBroadcast),
			Body: regexp.MustCompile(`^LogSquad: ADMIN COMMAND: Message broadcasted <(.+)> from (.+)`),
			Build: func(m []string) (Event, bool) {
				if m[2] == "RCON" {
					return Event{}, false
				}
				return Event{Message: m[1], From: m[2]}, true
			},
		},
		{
			Name: string(KindServerTickRate),
			Body: regexp.MustCompile(`^LogSquad: USQGameState: Server Tick Rate: ([0-9.]+)`),
			Build: func(m []string) (Event, bool) {
				return Event{TickRate: atof(m[1])}, true
			},
		},
		{
			Name: string(KindRoundWinner),
			Body: regexp.MustCompile(`^LogSquadTrace: \[DedicatedServer](?:ASQGameMode::)?DetermineMatchWinner\(\): (.+) won on (.+)`),
			Build: func(m []string) (Event, bool) {
				return Event{Team: m[1], Layer: m[2]}, true
			},
		},
		{
			Name: string(KindRoundTickets),
			Body: regexp.MustCompile(`^LogSquadGameEvents: Display: Team ([0-9]), (.*) \( ?(.*?) ?\) has (won|lost) the match with ([0-9]+) Tickets on layer (.*) \(level (.*)\)!`),
			Build: func(m []string) (Event, bool) {
				return Event{
					Team:       m[1],
					Faction:    m[2],
					Subfaction: m[3],
					Action:     m[4],
					Tickets:    atof(m[5]),
					Layer:      m[6],
					Level:      m[7],
				}, true
			},
		},
		{
			Name: string(KindRoundEnded),
			Body: regexp.MustCompile(`^LogGameState: Match State Changed from InProgress to WaitingPostMatch`),
			Build: func(m []string) (Event, bool) {
				return Event{}, true
			},
		},
		{
			Name: string(KindNewGame),
			Body: regexp.MustCompile(`^LogWorld: Bringing World /([A-Za-z]+)/(?:Maps/)?([A-Za-z0-9_-]+)/(?:.+/)?([A-Za-z0-9_-]+)(?:\.[A-Za-z0-9_-]+)`),
			Build: func(m []string) (Event, bool) {
				return Event{Level: m[2], Layer: m[3]}, true
			},
		},
	}
}
