package access

import (
	"github.com/scopegate/scopegate/internal/domain/scope"
)

// ResolveResourceAccess is the set-membership test for one leaf resource.
//
// A resource is accessible when any one of the grant paths holds: the
// principal owns it, a private resource carries a matching share row, or the
// resource's visibility delegates to the containing area or space. Deletion
// is an absolute veto checked before everything else.
func ResolveResourceAccess(snap *scope.Snapshot, p *scope.Principal, resourceID string) (bool, error) {
	res := snap.Resource(resourceID)
	if res == nil || res.Deleted {
		return false, ErrResourceNotFound
	}
	return resourceAccessible(snap, p, res, newDecisionMemo()), nil
}

// AccessibleResources computes the full accessible-ID set for a principal in
// one pass. List, search, and count callers must share one set per request
// so the three operations can never disagree about what is visible.
func AccessibleResources(snap *scope.Snapshot, p *scope.Principal) map[string]struct{} {
	memo := newDecisionMemo()
	out := make(map[string]struct{})
	for id, res := range snap.Resources {
		if res.Deleted {
			continue
		}
		if resourceAccessible(snap, p, res, memo) {
			out[id] = struct{}{}
		}
	}
	return out
}

// decisionMemo caches area and space decisions within a single batch walk so
// container access is derived once per container, not once per resource.
type decisionMemo struct {
	areas  map[string]Decision
	spaces map[string]Decision
}

func newDecisionMemo() *decisionMemo {
	return &decisionMemo{
		areas:  make(map[string]Decision),
		spaces: make(map[string]Decision),
	}
}

func (m *decisionMemo) areaDecision(snap *scope.Snapshot, p *scope.Principal, areaID string) Decision {
	if d, ok := m.areas[areaID]; ok {
		return d
	}
	d, err := ResolveAreaAccess(snap, p, areaID)
	if err != nil {
		d = Denied()
	}
	m.areas[areaID] = d
	return d
}

func (m *decisionMemo) spaceDecision(snap *scope.Snapshot, p *scope.Principal, spaceID string) Decision {
	if d, ok := m.spaces[spaceID]; ok {
		return d
	}
	d, err := ResolveSpaceAccess(snap, p, spaceID)
	if err != nil {
		d = Denied()
	}
	m.spaces[spaceID] = d
	return d
}

func resourceAccessible(snap *scope.Snapshot, p *scope.Principal, res *scope.Resource, memo *decisionMemo) bool {
	if res.OwnerID == p.ID {
		return true
	}

	if res.Visibility == scope.VisibilityPrivate {
		for _, share := range res.Shares {
			if share.UserID == p.ID {
				return true
			}
			if share.GroupID != "" && p.InGroup(share.GroupID) {
				return true
			}
		}
		return false
	}

	area := snap.Area(res.AreaID)
	if area == nil {
		// Orphaned resource: containing area is gone, deny.
		return false
	}

	switch res.Visibility {
	case scope.VisibilityArea:
		return memo.areaDecision(snap, p, area.ID).Granted
	case scope.VisibilitySpace:
		return memo.spaceDecision(snap, p, area.SpaceID).Granted
	default:
		// Unknown visibility denies by default.
		return false
	}
}
