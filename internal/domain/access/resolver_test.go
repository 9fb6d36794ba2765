package access

import (
	"errors"
	"testing"

	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

// testSnapshot builds the graph most scenarios share: one organization with
// one group, an organizational space, a personal space, and areas in both
// restricted and open flavors.
func testSnapshot() *scope.Snapshot {
	return &scope.Snapshot{
		Version: "1",
		Organizations: map[string]*scope.Organization{
			"org-1": {ID: "org-1", Name: "Acme"},
		},
		Groups: map[string]*scope.Group{
			"group-eng": {ID: "group-eng", OrganizationID: "org-1", Name: "Engineering"},
		},
		Spaces: map[string]*scope.Space{
			"space-open": {
				ID:             "space-open",
				OrganizationID: "org-1",
				Kind:           scope.SpaceOrganizational,
				OrgWide:        true,
			},
			"space-eng": {
				ID:             "space-eng",
				OrganizationID: "org-1",
				Kind:           scope.SpaceOrganizational,
				GroupAccess:    map[string]role.Role{"group-eng": role.RoleAdmin},
			},
			"space-personal": {
				ID:             "space-personal",
				OrganizationID: "org-1",
				Kind:           scope.SpacePersonal,
				CreatedBy:      "user-owner",
			},
		},
		Areas: map[string]*scope.Area{
			"area-open": {
				ID:      "area-open",
				SpaceID: "space-eng",
			},
			"area-secret": {
				ID:         "area-secret",
				SpaceID:    "space-eng",
				Restricted: true,
				CreatedBy:  "user-creator",
			},
		},
		Resources:   map[string]*scope.Resource{},
		SpaceGrants: map[string][]scope.MembershipGrant{},
		AreaGrants:  map[string][]scope.MembershipGrant{},
	}
}

func orgMember(id string) *scope.Principal {
	return &scope.Principal{
		ID:             id,
		OrgMemberships: []scope.OrgMembership{{OrganizationID: "org-1", UserID: id, Role: role.RoleMember}},
	}
}

func engMember(id string) *scope.Principal {
	p := orgMember(id)
	p.GroupMemberships = []scope.GroupMembership{{GroupID: "group-eng", UserID: id, Role: role.RoleMember}}
	return p
}

func TestResolveSpaceAccess(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(snap *scope.Snapshot)
		principal *scope.Principal
		spaceID   string
		want      Decision
	}{
		{
			name:      "org-wide space grants member to any org member",
			principal: orgMember("user-1"),
			spaceID:   "space-open",
			want:      Decision{Granted: true, Role: role.RoleMember, Source: SourceOrgWide},
		},
		{
			name:      "org-wide space denies non-members",
			principal: &scope.Principal{ID: "user-outsider"},
			spaceID:   "space-open",
			want:      Denied(),
		},
		{
			name:      "group access grants the group level",
			principal: engMember("user-1"),
			spaceID:   "space-eng",
			want:      Decision{Granted: true, Role: role.RoleAdmin, Source: SourceGroup},
		},
		{
			name: "explicit membership beats lower group grant",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-eng"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleOwner},
				}
			},
			principal: engMember("user-1"),
			spaceID:   "space-eng",
			want:      Decision{Granted: true, Role: role.RoleOwner, Source: SourceMembership},
		},
		{
			name: "higher group grant wins over lower explicit row",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-eng"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleViewer},
				}
			},
			principal: engMember("user-1"),
			spaceID:   "space-eng",
			want:      Decision{Granted: true, Role: role.RoleAdmin, Source: SourceGroup},
		},
		{
			name: "role tie resolves to the explicit source",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-eng"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleAdmin},
				}
			},
			principal: engMember("user-1"),
			spaceID:   "space-eng",
			want:      Decision{Granted: true, Role: role.RoleAdmin, Source: SourceMembership},
		},
		{
			name: "personal space honors explicit user rows",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-personal"] = []scope.MembershipGrant{
					{UserID: "user-owner", Role: role.RoleOwner},
					{UserID: "user-guest", Role: role.RoleViewer},
				}
			},
			principal: orgMember("user-guest"),
			spaceID:   "space-personal",
			want:      Decision{Granted: true, Role: role.RoleViewer, Source: SourceMembership},
		},
		{
			name: "personal space ignores group-targeted rows",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-personal"] = []scope.MembershipGrant{
					{GroupID: "group-eng", Role: role.RoleAdmin},
				}
			},
			principal: engMember("user-1"),
			spaceID:   "space-personal",
			want:      Denied(),
		},
		{
			name: "personal space ignores org-wide flag",
			setup: func(snap *scope.Snapshot) {
				snap.Spaces["space-personal"].OrgWide = true
			},
			principal: orgMember("user-1"),
			spaceID:   "space-personal",
			want:      Denied(),
		},
		{
			name: "unknown role on a grant row never grants",
			setup: func(snap *scope.Snapshot) {
				snap.SpaceGrants["space-eng"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleNone},
				}
			},
			principal: orgMember("user-1"),
			spaceID:   "space-eng",
			want:      Denied(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			if tt.setup != nil {
				tt.setup(snap)
			}

			got, err := ResolveSpaceAccess(snap, tt.principal, tt.spaceID)
			if err != nil {
				t.Fatalf("ResolveSpaceAccess() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveSpaceAccess() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveSpaceAccess_NotFound(t *testing.T) {
	snap := testSnapshot()
	_, err := ResolveSpaceAccess(snap, orgMember("user-1"), "space-missing")
	if !errors.Is(err, ErrSpaceNotFound) {
		t.Fatalf("error = %v, want ErrSpaceNotFound", err)
	}
}

func TestResolveAreaAccess(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(snap *scope.Snapshot)
		principal *scope.Principal
		areaID    string
		want      Decision
	}{
		{
			name:      "open area inherits space access",
			principal: engMember("user-1"),
			areaID:    "area-open",
			want:      Decision{Granted: true, Role: role.RoleAdmin, Source: SourceInherited},
		},
		{
			name:      "restricted area vetoes space access",
			principal: engMember("user-1"),
			areaID:    "area-secret",
			want:      Denied(),
		},
		{
			name:      "creator bypasses the restricted veto",
			principal: orgMember("user-creator"),
			areaID:    "area-secret",
			want:      Decision{Granted: true, Role: role.RoleOwner, Source: SourceCreator},
		},
		{
			name: "explicit grant opens a restricted area",
			setup: func(snap *scope.Snapshot) {
				snap.AreaGrants["area-secret"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleViewer},
				}
			},
			principal: engMember("user-1"),
			areaID:    "area-secret",
			want:      Decision{Granted: true, Role: role.RoleViewer, Source: SourceMembership},
		},
		{
			name: "group grant opens a restricted area",
			setup: func(snap *scope.Snapshot) {
				snap.AreaGrants["area-secret"] = []scope.MembershipGrant{
					{GroupID: "group-eng", Role: role.RoleMember},
				}
			},
			principal: engMember("user-1"),
			areaID:    "area-secret",
			want:      Decision{Granted: true, Role: role.RoleMember, Source: SourceGroup},
		},
		{
			name: "lower area grant cannot reduce inherited access",
			setup: func(snap *scope.Snapshot) {
				snap.AreaGrants["area-open"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleViewer},
				}
			},
			principal: engMember("user-1"),
			areaID:    "area-open",
			want:      Decision{Granted: true, Role: role.RoleAdmin, Source: SourceInherited},
		},
		{
			name: "higher area grant raises inherited access",
			setup: func(snap *scope.Snapshot) {
				snap.AreaGrants["area-open"] = []scope.MembershipGrant{
					{UserID: "user-1", Role: role.RoleOwner},
				}
			},
			principal: engMember("user-1"),
			areaID:    "area-open",
			want:      Decision{Granted: true, Role: role.RoleOwner, Source: SourceMembership},
		},
		{
			name:      "no space access and no grants denies",
			principal: orgMember("user-2"),
			areaID:    "area-open",
			want:      Denied(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			if tt.setup != nil {
				tt.setup(snap)
			}

			got, err := ResolveAreaAccess(snap, tt.principal, tt.areaID)
			if err != nil {
				t.Fatalf("ResolveAreaAccess() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveAreaAccess() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveAreaAccess_NotFound(t *testing.T) {
	snap := testSnapshot()
	_, err := ResolveAreaAccess(snap, orgMember("user-1"), "area-missing")
	if !errors.Is(err, ErrAreaNotFound) {
		t.Fatalf("error = %v, want ErrAreaNotFound", err)
	}
}

func TestMerge_HigherRoleWins(t *testing.T) {
	base := Decision{Granted: true, Role: role.RoleViewer, Source: SourceOrgWide}
	higher := Decision{Granted: true, Role: role.RoleAdmin, Source: SourceGroup}

	if got := merge(base, higher); got != higher {
		t.Errorf("merge() = %+v, want %+v", got, higher)
	}
	// Order must not matter for the role comparison.
	if got := merge(higher, base); got != higher {
		t.Errorf("merge() reversed = %+v, want %+v", got, higher)
	}
}

func TestMerge_TieBreaksOnSpecificity(t *testing.T) {
	inherited := Decision{Granted: true, Role: role.RoleMember, Source: SourceInherited}
	explicit := Decision{Granted: true, Role: role.RoleMember, Source: SourceMembership}

	if got := merge(inherited, explicit); got.Source != SourceMembership {
		t.Errorf("merge() source = %s, want %s", got.Source, SourceMembership)
	}
	if got := merge(explicit, inherited); got.Source != SourceMembership {
		t.Errorf("merge() reversed source = %s, want %s", got.Source, SourceMembership)
	}
}
