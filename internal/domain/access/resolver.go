package access

import (
	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

// ResolveSpaceAccess decides whether the principal can access the space, at
// what role, and through which grant path.
//
// The explicit membership check always runs regardless of space kind. For
// organizational spaces, group access grants and the org-wide default are
// additional candidates. Personal spaces skip both: they grant access only
// through explicit user-targeted membership rows.
func ResolveSpaceAccess(snap *scope.Snapshot, p *scope.Principal, spaceID string) (Decision, error) {
	space := snap.Space(spaceID)
	if space == nil {
		return Denied(), ErrSpaceNotFound
	}

	best := Denied()

	for _, g := range snap.GrantsForSpace(space.ID) {
		switch {
		case g.UserID == p.ID:
			best = merge(best, Decision{Granted: true, Role: g.Role, Source: SourceMembership})
		case g.GroupID != "" && space.Kind == scope.SpaceOrganizational && p.InGroup(g.GroupID):
			best = merge(best, Decision{Granted: true, Role: g.Role, Source: SourceGroup})
		}
	}

	if space.Kind == scope.SpaceOrganizational {
		for groupID, level := range space.GroupAccess {
			if p.InGroup(groupID) {
				best = merge(best, Decision{Granted: true, Role: level, Source: SourceGroup})
			}
		}
		if space.OrgWide && p.MembershipIn(space.OrganizationID) != nil {
			best = merge(best, Decision{Granted: true, Role: role.RoleMember, Source: SourceOrgWide})
		}
	}

	return best, nil
}

// ResolveAreaAccess composes space resolution with area-level grants.
//
// A non-restricted area inherits every principal the parent space grants, at
// the space-granted role, with source "inherited". Explicit area grants
// (direct or via group) are resolved independently and merged by role-max;
// on a role tie the explicit source wins. A restricted area ignores the
// inherited candidate entirely. The creator always retains at least owner,
// the one path that bypasses the restricted check.
func ResolveAreaAccess(snap *scope.Snapshot, p *scope.Principal, areaID string) (Decision, error) {
	area := snap.Area(areaID)
	if area == nil {
		return Denied(), ErrAreaNotFound
	}

	best := Denied()

	for _, g := range snap.GrantsForArea(area.ID) {
		switch {
		case g.UserID == p.ID:
			best = merge(best, Decision{Granted: true, Role: g.Role, Source: SourceMembership})
		case g.GroupID != "" && p.InGroup(g.GroupID):
			best = merge(best, Decision{Granted: true, Role: g.Role, Source: SourceGroup})
		}
	}

	if area.CreatedBy == p.ID {
		best = merge(best, Decision{Granted: true, Role: role.RoleOwner, Source: SourceCreator})
	}

	if !area.Restricted {
		spaceDec, err := ResolveSpaceAccess(snap, p, area.SpaceID)
		if err != nil {
			return Denied(), err
		}
		if spaceDec.Granted {
			best = merge(best, Decision{Granted: true, Role: spaceDec.Role, Source: SourceInherited})
		}
	}

	return best, nil
}
