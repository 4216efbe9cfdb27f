// Package ident implements the opaque, non-convertible identifier newtypes of the
// data model (branded string/int types). Every constructor validates its input
// and returns ok=false (alongside the zero value) on failure, so a caller that
// checks ok never carries an invalid identifier.
package ident

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/leighmacdonald/steamid/v3/steamid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SteamID is a validated 17-digit Steam64 identifier.
type SteamID struct{ value string }

func (s SteamID) String() string { return s.value }
func (s SteamID) IsZero() bool   { return s.value == "" }

var steamIDPattern = regexp.MustCompile(`^\d{17}$`)

// NewSteamID validates s as exactly 17 ASCII decimal digits and as a structurally
// sound Steam64 value (account type / universe nibble) via steamid.StringToSID64,
// which a plain digit-count regex cannot check on its own.
func NewSteamID(s string) (SteamID, bool) {
	if !steamIDPattern.MatchString(s) {
		return SteamID{}, false
	}
	sid, err := steamid.StringToSID64(s)
	if err != nil || !sid.Valid() {
		return SteamID{}, false
	}
	return SteamID{value: s}, true
}

// EOSID is a validated, lower-case-normalized 32 hex character Epic Online Services
// identifier.
type EOSID struct{ value string }

func (e EOSID) String() string { return e.value }
func (e EOSID) IsZero() bool   { return e.value == "" }

var (
	eosIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	lowerCaser   = cases.Lower(language.Und)
)

// NewEOSID validates e as 32 hex characters and normalizes it to lower-case.
func NewEOSID(e string) (EOSID, bool) {
	if !eosIDPattern.MatchString(e) {
		return EOSID{}, false
	}
	return EOSID{value: lowerCaser.String(e)}, true
}

// PlayerID is the small positive integer the game server assigns to a connected
// player, valid in the 1-1024 range.
type PlayerID int

// NewPlayerID validates n is within the game server's assignable range.
func NewPlayerID(n int) (PlayerID, bool) {
	if n < 1 || n > 1024 {
		return 0, false
	}
	return PlayerID(n), true
}

// ParsePlayerID parses and validates a player ID from its textual form.
func ParsePlayerID(s string) (PlayerID, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return NewPlayerID(n)
}

// TeamID is one of the two Squad teams.
type TeamID int

const (
	TeamOne TeamID = 1
	TeamTwo TeamID = 2
)

// NewTeamID validates n is 1 or 2.
func NewTeamID(n int) (TeamID, bool) {
	if n != 1 && n != 2 {
		return 0, false
	}
	return TeamID(n), true
}

// SquadID is a squad number, unique within its team.
type SquadID int

// NewSquadID validates n is a positive squad number.
func NewSquadID(n int) (SquadID, bool) {
	if n <= 0 {
		return 0, false
	}
	return SquadID(n), true
}

// ChainID is the correlation tag the game server stamps onto related log lines.
type ChainID int64

// NewChainID validates n is non-negative.
func NewChainID(n int64) (ChainID, bool) {
	if n < 0 {
		return 0, false
	}
	return ChainID(n), true
}

// ParseChainID parses a chain ID out of its (possibly space-padded) textual form.
func ParseChainID(s string) (ChainID, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return NewChainID(n)
}

// PlayerController is the opaque Unreal object-path string the game server uses to
// name a connected player's controller actor.
type PlayerController struct{ value string }

func (p PlayerController) String() string { return p.value }
func (p PlayerController) IsZero() bool   { return p.value == "" }

var controllerPattern = regexp.MustCompile(`^BP_PlayerController.*_C_\d+$`)

// NewPlayerController validates c matches the BP_PlayerController…_C_<digits> shape.
func NewPlayerController(c string) (PlayerController, bool) {
	if !controllerPattern.MatchString(c) {
		return PlayerController{}, false
	}
	return PlayerController{value: c}, true
}
