package state

import (
	"context"
	"net/http"
	"sync"

	"github.com/opsquad/supervisor/internal/adminlist"
)

// AdminService is the canonical, orchestrator-owned admin map: groups and
// members loaded from one or more sources, refreshed on interval, exposing
// hasPermission(identity, perm). Loading is delegated entirely to
// internal/adminlist; this service only owns the refresh cadence and the
// permission lookup over the most recently loaded List.
type AdminService struct {
	mu       sync.Mutex
	sources  []adminlist.Source
	client   *http.Client
	list     adminlist.List
	warnings []adminlist.Warning
}

// NewAdminService constructs an AdminService over the given sources. client,
// if nil, falls back to adminlist's default bounded-timeout client.
func NewAdminService(sources []adminlist.Source, client *http.Client) *AdminService {
	return &AdminService{
		sources: sources,
		client:  client,
		list:    adminlist.List{Groups: make(map[string]adminlist.Group)},
	}
}

// Refresh reloads every source and atomically swaps in the merged result.
// A failure leaves the previously loaded list in place — a stale admin list
// is preferable to an empty one.
func (s *AdminService) Refresh(ctx context.Context) error {
	list, warnings, err := adminlist.Load(ctx, s.sources, s.client)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.list = list
	s.warnings = warnings
	s.mu.Unlock()
	return nil
}

// Warnings returns the non-fatal parse warnings from the most recent Refresh.
func (s *AdminService) Warnings() []adminlist.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]adminlist.Warning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// HasPermission reports whether identity's group grants perm. An identity
// matching no admin entry, or naming a group that was never declared, never
// has any permission.
func (s *AdminService) HasPermission(identity Identity, perm string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.list.Members {
		if !matches(m, identity) {
			continue
		}
		if g, ok := s.list.Groups[m.GroupName]; ok && g.Has(perm) {
			return true
		}
	}
	return false
}

func matches(m adminlist.Member, identity Identity) bool {
	if m.HasSteamID && identity.HasSteamID && m.SteamID == identity.SteamID {
		return true
	}
	if m.HasEOSID && identity.HasEOSID && m.EOSID == identity.EOSID {
		return true
	}
	return false
}
