package state

import (
	"sync"

	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

// Event names synthesized by the layer service.
const (
	EventLayerCurrentChanged = "LAYER_CURRENT_CHANGED"
	EventLayerNextChanged    = "LAYER_NEXT_CHANGED"
)

// DefaultLayerHistoryDepth is the bounded history size used when a caller
// does not specify one.
const DefaultLayerHistoryDepth = 10

// LayerCurrentChanged is the payload of EventLayerCurrentChanged.
type LayerCurrentChanged struct{ Old, New parser.MapInfo }

// LayerNextChanged is the payload of EventLayerNextChanged.
type LayerNextChanged struct{ Old, New parser.MapInfo }

// LayerService stores the current map, the next (voted) map, and a bounded
// history of past current maps, suppressing consecutive duplicate entries.
type LayerService struct {
	mu sync.Mutex

	current    parser.MapInfo
	hasCurrent bool
	next       parser.MapInfo
	hasNext    bool

	history    []parser.MapInfo
	maxHistory int

	bus *events.Bus
}

// NewLayerService constructs a LayerService. maxHistory <= 0 falls back to
// DefaultLayerHistoryDepth.
func NewLayerService(bus *events.Bus, maxHistory int) *LayerService {
	if maxHistory <= 0 {
		maxHistory = DefaultLayerHistoryDepth
	}
	return &LayerService{maxHistory: maxHistory, bus: bus}
}

// SetCurrent records the current map. If it differs from the previously
// recorded current map, the old value is appended to history (bounded,
// dropping the oldest entry once full) and EventLayerCurrentChanged fires.
// Setting the same value again is a no-op beyond refreshing hasCurrent.
func (s *LayerService) SetCurrent(info parser.MapInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasCurrent && s.current == info {
		return
	}

	old := s.current
	hadOld := s.hasCurrent
	s.current = info
	s.hasCurrent = true

	if hadOld {
		s.history = append(s.history, old)
		if len(s.history) > s.maxHistory {
			s.history = s.history[len(s.history)-s.maxHistory:]
		}
	}

	s.emit(EventLayerCurrentChanged, LayerCurrentChanged{Old: old, New: info})
}

// SetNext records the voted next map. Duplicate-suppressed the same way as
// SetCurrent, but never contributes to history.
func (s *LayerService) SetNext(info parser.MapInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasNext && s.next == info {
		return
	}
	old := s.next
	s.next = info
	s.hasNext = true
	s.emit(EventLayerNextChanged, LayerNextChanged{Old: old, New: info})
}

func (s *LayerService) emit(name string, payload interface{}) {
	if s.bus != nil {
		s.bus.Emit(name, payload)
	}
}

// Current returns the current map, if one has been recorded.
func (s *LayerService) Current() (parser.MapInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// Next returns the next (voted) map, if one has been recorded.
func (s *LayerService) Next() (parser.MapInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.hasNext
}

// History returns the bounded list of past current maps, oldest first.
func (s *LayerService) History() []parser.MapInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]parser.MapInfo, len(s.history))
	copy(out, s.history)
	return out
}
