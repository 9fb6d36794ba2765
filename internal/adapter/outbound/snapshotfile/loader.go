// Package snapshotfile loads scope, guardrail, and catalog snapshots from
// YAML fixture files. Used by the CLI for offline evaluation and by tests.
package snapshotfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/model"
	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

// Fixture is everything one YAML file can describe: the scope graph,
// principals, guardrails, and the model catalog.
type Fixture struct {
	Scope      *scope.Snapshot
	Principals []*scope.Principal
	Guardrails []guardrail.Guardrail
	Models     []model.Model
	Tiers      []model.Tier
}

type fileRoot struct {
	Version       string          `yaml:"version"`
	Organizations []fileOrg       `yaml:"organizations"`
	Groups        []fileGroup     `yaml:"groups"`
	Spaces        []fileSpace     `yaml:"spaces"`
	Areas         []fileArea      `yaml:"areas"`
	Resources     []fileResource  `yaml:"resources"`
	Principals    []filePrincipal `yaml:"principals"`
	Guardrails    []fileGuardrail `yaml:"guardrails"`
	Models        []fileModel     `yaml:"models"`
	Tiers         []fileTier      `yaml:"tiers"`
}

type fileOrg struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	DefaultTier  string   `yaml:"default_tier"`
	AllowedTiers []string `yaml:"allowed_tiers"`
}

type fileGroup struct {
	ID             string `yaml:"id"`
	OrganizationID string `yaml:"organization_id"`
	Name           string `yaml:"name"`
}

type fileGrant struct {
	UserID  string `yaml:"user_id"`
	GroupID string `yaml:"group_id"`
	Role    string `yaml:"role"`
}

type fileSpace struct {
	ID             string            `yaml:"id"`
	OrganizationID string            `yaml:"organization_id"`
	Name           string            `yaml:"name"`
	Kind           string            `yaml:"kind"`
	OrgWide        bool              `yaml:"org_wide"`
	GroupAccess    map[string]string `yaml:"group_access"`
	CreatedBy      string            `yaml:"created_by"`
	Members        []fileGrant       `yaml:"members"`
}

type fileArea struct {
	ID         string      `yaml:"id"`
	SpaceID    string      `yaml:"space_id"`
	Name       string      `yaml:"name"`
	Restricted bool        `yaml:"restricted"`
	CreatedBy  string      `yaml:"created_by"`
	Members    []fileGrant `yaml:"members"`
}

type fileResource struct {
	ID         string      `yaml:"id"`
	AreaID     string      `yaml:"area_id"`
	OwnerID    string      `yaml:"owner_id"`
	Visibility string      `yaml:"visibility"`
	Deleted    bool        `yaml:"deleted"`
	Shares     []fileGrant `yaml:"shares"`
}

type fileOrgMembership struct {
	OrganizationID string `yaml:"organization_id"`
	Role           string `yaml:"role"`
	TierOverride   string `yaml:"tier_override"`
	ProfileTier    string `yaml:"profile_tier"`
}

type fileGroupMembership struct {
	GroupID string `yaml:"group_id"`
	Role    string `yaml:"role"`
}

type filePrincipal struct {
	ID               string                `yaml:"id"`
	OrgMemberships   []fileOrgMembership   `yaml:"org_memberships"`
	GroupMemberships []fileGroupMembership `yaml:"group_memberships"`
}

type fileGuardrail struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	Level     string         `yaml:"level"`
	ScopeID   string         `yaml:"scope_id"`
	Action    string         `yaml:"action"`
	Priority  int            `yaml:"priority"`
	Active    *bool          `yaml:"active"`
	Condition string         `yaml:"condition"`
	Config    map[string]any `yaml:"config"`
}

type fileModel struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Tier             string `yaml:"tier"`
	Enabled          *bool  `yaml:"enabled"`
	RequiresApproval bool   `yaml:"requires_approval"`
}

type fileTier struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Rank int    `yaml:"rank"`
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return Parse(data)
}

// Parse decodes fixture YAML. Unknown role strings are kept as RoleNone so
// a corrupt row denies instead of failing the whole load.
func Parse(data []byte) (*Fixture, error) {
	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot YAML: %w", err)
	}

	snap := &scope.Snapshot{
		Version:       root.Version,
		Organizations: make(map[string]*scope.Organization),
		Groups:        make(map[string]*scope.Group),
		Spaces:        make(map[string]*scope.Space),
		Areas:         make(map[string]*scope.Area),
		Resources:     make(map[string]*scope.Resource),
		SpaceGrants:   make(map[string][]scope.MembershipGrant),
		AreaGrants:    make(map[string][]scope.MembershipGrant),
	}
	if snap.Version == "" {
		snap.Version = "file"
	}

	for _, o := range root.Organizations {
		if o.ID == "" {
			return nil, fmt.Errorf("organization without id")
		}
		snap.Organizations[o.ID] = &scope.Organization{
			ID:           o.ID,
			Name:         o.Name,
			DefaultTier:  o.DefaultTier,
			AllowedTiers: o.AllowedTiers,
		}
	}

	for _, g := range root.Groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group without id")
		}
		snap.Groups[g.ID] = &scope.Group{ID: g.ID, OrganizationID: g.OrganizationID, Name: g.Name}
	}

	for _, sp := range root.Spaces {
		if sp.ID == "" {
			return nil, fmt.Errorf("space without id")
		}
		kind := scope.SpaceKind(sp.Kind)
		if kind != scope.SpaceOrganizational && kind != scope.SpacePersonal {
			return nil, fmt.Errorf("space %s: unknown kind %q", sp.ID, sp.Kind)
		}
		space := &scope.Space{
			ID:             sp.ID,
			OrganizationID: sp.OrganizationID,
			Name:           sp.Name,
			Kind:           kind,
			OrgWide:        sp.OrgWide,
			CreatedBy:      sp.CreatedBy,
		}
		if len(sp.GroupAccess) > 0 {
			space.GroupAccess = make(map[string]role.Role, len(sp.GroupAccess))
			for groupID, r := range sp.GroupAccess {
				space.GroupAccess[groupID] = parseRole(r)
			}
		}
		snap.Spaces[sp.ID] = space
		snap.SpaceGrants[sp.ID] = parseGrants(sp.Members)
	}

	for _, a := range root.Areas {
		if a.ID == "" {
			return nil, fmt.Errorf("area without id")
		}
		snap.Areas[a.ID] = &scope.Area{
			ID:         a.ID,
			SpaceID:    a.SpaceID,
			Name:       a.Name,
			Restricted: a.Restricted,
			CreatedBy:  a.CreatedBy,
		}
		snap.AreaGrants[a.ID] = parseGrants(a.Members)
	}

	for _, r := range root.Resources {
		if r.ID == "" {
			return nil, fmt.Errorf("resource without id")
		}
		res := &scope.Resource{
			ID:         r.ID,
			AreaID:     r.AreaID,
			OwnerID:    r.OwnerID,
			Visibility: scope.Visibility(r.Visibility),
			Deleted:    r.Deleted,
		}
		for _, sh := range r.Shares {
			res.Shares = append(res.Shares, scope.ShareGrant{
				UserID:     sh.UserID,
				GroupID:    sh.GroupID,
				Permission: parseRole(sh.Role),
			})
		}
		snap.Resources[r.ID] = res
	}

	fixture := &Fixture{Scope: snap}

	for _, p := range root.Principals {
		if p.ID == "" {
			return nil, fmt.Errorf("principal without id")
		}
		principal := &scope.Principal{ID: p.ID}
		for _, m := range p.OrgMemberships {
			principal.OrgMemberships = append(principal.OrgMemberships, scope.OrgMembership{
				OrganizationID: m.OrganizationID,
				UserID:         p.ID,
				Role:           parseRole(m.Role),
				TierOverride:   m.TierOverride,
				ProfileTier:    m.ProfileTier,
			})
		}
		for _, m := range p.GroupMemberships {
			principal.GroupMemberships = append(principal.GroupMemberships, scope.GroupMembership{
				GroupID: m.GroupID,
				UserID:  p.ID,
				Role:    parseRole(m.Role),
			})
		}
		fixture.Principals = append(fixture.Principals, principal)
	}

	for _, g := range root.Guardrails {
		if g.ID == "" {
			return nil, fmt.Errorf("guardrail without id")
		}
		active := true
		if g.Active != nil {
			active = *g.Active
		}
		action := guardrail.Action(g.Action)
		if action == "" {
			action = guardrail.ActionBlock
		}
		fixture.Guardrails = append(fixture.Guardrails, guardrail.Guardrail{
			ID:        g.ID,
			Type:      guardrail.Type(g.Type),
			Level:     guardrail.Level(g.Level),
			ScopeID:   g.ScopeID,
			Action:    action,
			Priority:  g.Priority,
			Active:    active,
			Condition: g.Condition,
			Config:    g.Config,
		})
	}

	for _, m := range root.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("model without id")
		}
		enabled := true
		if m.Enabled != nil {
			enabled = *m.Enabled
		}
		fixture.Models = append(fixture.Models, model.Model{
			ID:               m.ID,
			Name:             m.Name,
			Tier:             m.Tier,
			Enabled:          enabled,
			RequiresApproval: m.RequiresApproval,
		})
	}

	for _, t := range root.Tiers {
		fixture.Tiers = append(fixture.Tiers, model.Tier{ID: t.ID, Name: t.Name, Rank: t.Rank})
	}

	return fixture, nil
}

func parseGrants(grants []fileGrant) []scope.MembershipGrant {
	out := make([]scope.MembershipGrant, 0, len(grants))
	for _, g := range grants {
		out = append(out, scope.MembershipGrant{
			UserID:  g.UserID,
			GroupID: g.GroupID,
			Role:    parseRole(g.Role),
		})
	}
	return out
}

// parseRole maps an unknown role string to RoleNone: the row stays present
// but can never grant access.
func parseRole(s string) role.Role {
	r, err := role.Parse(s)
	if err != nil {
		return role.RoleNone
	}
	return r
}
