// Package scope contains the read-only scope graph the resolvers walk:
// organizations, groups, spaces, areas, resources, and their membership
// edges, captured as one immutable snapshot per resolution call.
package scope

import (
	"time"

	"github.com/scopegate/scopegate/internal/domain/role"
)

// SpaceKind distinguishes the two space flavors.
type SpaceKind string

const (
	// SpaceOrganizational spaces can grant access via group grants and
	// the org-wide flag in addition to explicit membership.
	SpaceOrganizational SpaceKind = "organizational"
	// SpacePersonal spaces grant access only through explicit membership
	// rows. Group and org-wide grants never apply.
	SpacePersonal SpaceKind = "personal"
)

// Visibility controls how a leaf resource is shared.
type Visibility string

const (
	// VisibilityPrivate resources are visible to the owner and explicit shares only.
	VisibilityPrivate Visibility = "private"
	// VisibilityArea resources are visible to anyone with access to the containing area.
	VisibilityArea Visibility = "area"
	// VisibilitySpace resources are visible to anyone with access to the containing space.
	VisibilitySpace Visibility = "space"
)

// Organization is the top-level scope.
type Organization struct {
	ID   string
	Name string
	// DefaultTier is the subscription tier members fall back to when
	// neither their membership row nor profile carries an override.
	DefaultTier string
	// AllowedTiers is the set of tiers the organization's plan permits.
	// Empty means all tiers are permitted.
	AllowedTiers []string
	CreatedAt    time.Time
}

// Group is a named set of users inside one organization.
type Group struct {
	ID             string
	OrganizationID string
	Name           string
}

// OrgMembership relates a principal to an organization with a role.
// A principal has at most one membership row per organization.
type OrgMembership struct {
	OrganizationID string
	UserID         string
	Role           role.Role
	// TierOverride, when non-empty, replaces the profile and org defaults
	// for tier resolution.
	TierOverride string
	// ProfileTier is the tier from the principal's profile, if any.
	ProfileTier string
}

// GroupMembership relates a principal to a group with a role.
type GroupMembership struct {
	GroupID string
	UserID  string
	Role    role.Role
}

// Space is a container under an organization.
type Space struct {
	ID             string
	OrganizationID string
	Name           string
	Kind           SpaceKind
	// OrgWide grants every organization member the member role.
	// Only meaningful for organizational spaces.
	OrgWide bool
	// GroupAccess maps group IDs to the access level granted to that
	// group's members. Only meaningful for organizational spaces.
	GroupAccess map[string]role.Role
	CreatedBy   string
}

// Area is a container under a space.
type Area struct {
	ID      string
	SpaceID string
	Name    string
	// Restricted areas grant access only through their own explicit
	// membership rows, regardless of space access. The creator always
	// retains access.
	Restricted bool
	CreatedBy  string
}

// MembershipGrant is an explicit user-or-group grant on a space or area.
// Exactly one of UserID or GroupID is set.
type MembershipGrant struct {
	UserID  string
	GroupID string
	Role    role.Role
}

// ShareGrant is an explicit share row on a leaf resource.
// Exactly one of UserID or GroupID is set.
type ShareGrant struct {
	UserID  string
	GroupID string
	// Permission is informational for the engine; any share row grants
	// visibility regardless of its permission level.
	Permission role.Role
}

// Resource is a leaf entity (document, page, task) attached to an area.
type Resource struct {
	ID         string
	AreaID     string
	OwnerID    string
	Visibility Visibility
	Shares     []ShareGrant
	// Deleted resources are excluded from every resolution path before
	// any other rule is evaluated.
	Deleted bool
}

// Principal is the user whose access is being resolved.
type Principal struct {
	ID string
	// OrgMemberships holds one row per organization the principal belongs to.
	OrgMemberships []OrgMembership
	// GroupMemberships holds one row per group the principal belongs to.
	GroupMemberships []GroupMembership
}

// MembershipIn returns the principal's membership row for the given
// organization, or nil when the principal does not belong to it.
func (p *Principal) MembershipIn(orgID string) *OrgMembership {
	for i := range p.OrgMemberships {
		if p.OrgMemberships[i].OrganizationID == orgID {
			return &p.OrgMemberships[i]
		}
	}
	return nil
}

// GroupIDs returns the IDs of every group the principal belongs to.
func (p *Principal) GroupIDs() []string {
	ids := make([]string, 0, len(p.GroupMemberships))
	for _, gm := range p.GroupMemberships {
		ids = append(ids, gm.GroupID)
	}
	return ids
}

// InGroup returns true if the principal belongs to the given group.
func (p *Principal) InGroup(groupID string) bool {
	for _, gm := range p.GroupMemberships {
		if gm.GroupID == groupID {
			return true
		}
	}
	return false
}
