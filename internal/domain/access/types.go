// Package access implements the space, area, and resource access resolvers.
//
// Every resolver is a pure function of (principal, target, snapshot). Grants
// from multiple simultaneous paths merge by lattice maximum; missing targets
// are reported as not-found errors, distinct from denial.
package access

import (
	"errors"

	"github.com/scopegate/scopegate/internal/domain/role"
)

// Sentinel errors distinguishing "target does not exist" from "exists but
// denied". Callers must never infer one from the other.
var (
	ErrSpaceNotFound    = errors.New("space not found")
	ErrAreaNotFound     = errors.New("area not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// Source identifies the grant path that produced a decision.
type Source string

const (
	// SourceMembership is a direct user-targeted membership row.
	SourceMembership Source = "membership"
	// SourceGroup is a grant through a group the principal belongs to.
	SourceGroup Source = "group"
	// SourceOrgWide is the organizational space org-wide default.
	SourceOrgWide Source = "org_wide"
	// SourceInherited is area access inherited from the parent space.
	SourceInherited Source = "inherited"
	// SourceCreator is the area creator's permanent access.
	SourceCreator Source = "creator"
	// SourceNone means no grant path applied.
	SourceNone Source = "none"
)

// specificity orders sources for tie-breaking when two grant paths produce
// the same role: the more specific path wins.
var specificity = map[Source]int{
	SourceMembership: 5,
	SourceGroup:      4,
	SourceCreator:    3,
	SourceInherited:  2,
	SourceOrgWide:    1,
	SourceNone:       0,
}

// Decision is the outcome of a space or area resolution.
type Decision struct {
	Granted bool
	Role    role.Role
	Source  Source
}

// Denied is the zero decision: no access, no role, no source.
func Denied() Decision {
	return Decision{Granted: false, Role: role.RoleNone, Source: SourceNone}
}

// merge folds a candidate into the current best decision. The higher role
// wins; on equal roles the more specific source wins.
func merge(best, candidate Decision) Decision {
	if !candidate.Granted {
		return best
	}
	if !best.Granted {
		return candidate
	}
	if candidate.Role.Rank() > best.Role.Rank() {
		return candidate
	}
	if candidate.Role.Rank() == best.Role.Rank() &&
		specificity[candidate.Source] > specificity[best.Source] {
		return candidate
	}
	return best
}
