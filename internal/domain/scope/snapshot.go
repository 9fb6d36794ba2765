package scope

import "context"

// Snapshot is an immutable view of the scope graph for one resolution call.
// The engine never mutates a snapshot; membership and guardrail writes
// happen in the external system and simply change the next snapshot.
type Snapshot struct {
	// Version identifies the snapshot for cache keying. Providers should
	// bump it on any membership or structural write.
	Version string

	Organizations map[string]*Organization
	Groups        map[string]*Group
	Spaces        map[string]*Space
	Areas         map[string]*Area
	Resources     map[string]*Resource

	// SpaceGrants and AreaGrants hold explicit membership rows keyed by
	// container ID.
	SpaceGrants map[string][]MembershipGrant
	AreaGrants  map[string][]MembershipGrant
}

// Provider fetches scope snapshots and principals. It is the engine's only
// outbound port for organizational data; implementations live in
// internal/adapter/outbound.
type Provider interface {
	// Snapshot returns the current scope graph. The returned value must be
	// treated as immutable for the duration of the resolution call.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Principal returns the principal with the given ID, or nil when no
	// such principal exists.
	Principal(ctx context.Context, id string) (*Principal, error)
}

// Space returns the space with the given ID, or nil.
func (s *Snapshot) Space(id string) *Space {
	return s.Spaces[id]
}

// Area returns the area with the given ID, or nil.
func (s *Snapshot) Area(id string) *Area {
	return s.Areas[id]
}

// Resource returns the resource with the given ID, or nil.
func (s *Snapshot) Resource(id string) *Resource {
	return s.Resources[id]
}

// GrantsForSpace returns the explicit membership rows on a space.
func (s *Snapshot) GrantsForSpace(spaceID string) []MembershipGrant {
	return s.SpaceGrants[spaceID]
}

// GrantsForArea returns the explicit membership rows on an area.
func (s *Snapshot) GrantsForArea(areaID string) []MembershipGrant {
	return s.AreaGrants[areaID]
}
