package state

import (
	"sync"

	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/ident"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

// Event names synthesized by the squad service.
const (
	EventSquadAppeared = "SQUAD_APPEARED"
	EventSquadUpdated  = "SQUAD_UPDATED"
	EventSquadRemoved  = "SQUAD_REMOVED"
)

type squadKey struct {
	TeamID  ident.TeamID
	SquadID ident.SquadID
}

// SquadAppeared is the payload of EventSquadAppeared.
type SquadAppeared struct{ Squad parser.Squad }

// SquadUpdated is the payload of EventSquadUpdated.
type SquadUpdated struct{ Old, New parser.Squad }

// SquadRemoved is the payload of EventSquadRemoved.
type SquadRemoved struct {
	TeamID  ident.TeamID
	SquadID ident.SquadID
}

// SquadService is the canonical, orchestrator-owned squad map, keyed by
// (teamID, squadID). Unlike the player service it carries no grace/tombstone
// policy: a squad absent from the latest listing is removed immediately.
type SquadService struct {
	mu     sync.Mutex
	squads map[squadKey]parser.Squad
	bus    *events.Bus
}

// NewSquadService constructs an empty squad map.
func NewSquadService(bus *events.Bus) *SquadService {
	return &SquadService{squads: make(map[squadKey]parser.Squad), bus: bus}
}

// UpdateFromRCON diffs the current listing against the previous snapshot:
// new squads emit SQUAD_APPEARED, changed squads emit SQUAD_UPDATED, and
// squads no longer listed emit SQUAD_REMOVED and are dropped.
func (s *SquadService) UpdateFromRCON(list []parser.Squad) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[squadKey]struct{}, len(list))
	for _, sq := range list {
		key := squadKey{TeamID: sq.TeamID, SquadID: sq.SquadID}
		seen[key] = struct{}{}

		prev, ok := s.squads[key]
		s.squads[key] = sq
		if !ok {
			s.emit(EventSquadAppeared, SquadAppeared{Squad: sq})
			continue
		}
		if prev != sq {
			s.emit(EventSquadUpdated, SquadUpdated{Old: prev, New: sq})
		}
	}

	for key := range s.squads {
		if _, ok := seen[key]; ok {
			continue
		}
		delete(s.squads, key)
		s.emit(EventSquadRemoved, SquadRemoved{TeamID: key.TeamID, SquadID: key.SquadID})
	}
}

func (s *SquadService) emit(name string, payload interface{}) {
	if s.bus != nil {
		s.bus.Emit(name, payload)
	}
}

// Get looks up a single squad by team and squad ID.
func (s *SquadService) Get(teamID ident.TeamID, squadID ident.SquadID) (parser.Squad, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.squads[squadKey{TeamID: teamID, SquadID: squadID}]
	return sq, ok
}

// Snapshot returns every tracked squad.
func (s *SquadService) Snapshot() []parser.Squad {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]parser.Squad, 0, len(s.squads))
	for _, sq := range s.squads {
		out = append(out, sq)
	}
	return out
}
