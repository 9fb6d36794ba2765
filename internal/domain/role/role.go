// Package role contains the shared role lattice used by every resolver.
//
// The same four role strings appear on organization memberships, space
// memberships, area memberships, and group access grants. Defining the
// lattice once means role-merge logic is written once and tested once.
package role

import "fmt"

// Role represents an access role in the lattice owner > admin > member > viewer.
type Role string

const (
	// RoleOwner has full control including sharing and deletion.
	RoleOwner Role = "owner"
	// RoleAdmin can manage members and settings.
	RoleAdmin Role = "admin"
	// RoleMember can read and write content.
	RoleMember Role = "member"
	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
	// RoleNone is the zero value: no access. It is below every real role.
	RoleNone Role = ""
)

// rank maps each role to its position in the lattice. Higher wins.
var rank = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleMember: 2,
	RoleViewer: 1,
	RoleNone:   0,
}

// IsValid returns true if the role is one of the four known roles.
// RoleNone is not a valid stored role.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

// Rank returns the lattice position of the role. Unknown roles rank as
// RoleNone so that a corrupt role string can never grant access.
func (r Role) Rank() int {
	return rank[r]
}

// AtLeast returns true if r grants at least the access of other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}

// Max returns the highest of the given roles. Merging multiple simultaneous
// grant paths always takes the lattice maximum, never first-wins.
func Max(roles ...Role) Role {
	best := RoleNone
	for _, r := range roles {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}

// Parse converts a stored role string into a Role. An unknown string
// resolves to RoleNone with an error so callers can surface a structural
// warning while still denying by default.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
