package state

import (
	"testing"

	"github.com/opsquad/supervisor/internal/events"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

func TestSetCurrentAppendsPreviousToHistory(t *testing.T) {
	s := NewLayerService(events.New(nil), 10)

	s.SetCurrent(parser.MapInfo{Level: "Narva", Layer: "Narva_RAAS_v1", HasLayer: true})
	s.SetCurrent(parser.MapInfo{Level: "Gorodok", Layer: "Gorodok_RAAS_v1", HasLayer: true})

	cur, ok := s.Current()
	if !ok || cur.Level != "Gorodok" {
		t.Fatalf("unexpected current: %+v ok=%v", cur, ok)
	}
	hist := s.History()
	if len(hist) != 1 || hist[0].Level != "Narva" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestSetCurrentDuplicateSuppressed(t *testing.T) {
	s := NewLayerService(events.New(nil), 10)
	info := parser.MapInfo{Level: "Narva", Layer: "Narva_RAAS_v1", HasLayer: true}

	s.SetCurrent(info)
	s.SetCurrent(info)

	if hist := s.History(); len(hist) != 0 {
		t.Fatalf("expected no history entries for a duplicate set, got %+v", hist)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	s := NewLayerService(events.New(nil), 2)

	for i := 0; i < 5; i++ {
		s.SetCurrent(parser.MapInfo{Level: string(rune('A' + i)), HasLayer: true})
	}

	hist := s.History()
	if len(hist) != 2 {
		t.Fatalf("expected history bounded to 2 entries, got %d: %+v", len(hist), hist)
	}
	if hist[len(hist)-1].Level != "D" {
		t.Fatalf("expected most recent history entry to be the second-to-last current, got %+v", hist)
	}
}

func TestSetNextDuplicateSuppressed(t *testing.T) {
	var fired int
	bus := events.New(nil)
	bus.On(EventLayerNextChanged, func(p interface{}) { fired++ })

	s := NewLayerService(bus, 10)
	info := parser.MapInfo{Level: "Narva", HasLayer: true}
	s.SetNext(info)
	s.SetNext(info)

	if fired != 1 {
		t.Fatalf("expected exactly one next-changed event, got %d", fired)
	}
}

func TestDefaultHistoryDepthAppliedWhenNonPositive(t *testing.T) {
	s := NewLayerService(events.New(nil), 0)
	if s.maxHistory != DefaultLayerHistoryDepth {
		t.Fatalf("expected default history depth, got %d", s.maxHistory)
	}
}
