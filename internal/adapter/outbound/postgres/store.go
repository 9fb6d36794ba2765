// Package postgres implements the snapshot provider ports over a PostgreSQL
// database owned by the external system. The engine only reads: every call
// materializes an immutable snapshot from the current table state.
//
// The external system is expected to bump scope_revision.revision and
// guardrail_revision.revision on any relevant write; the engine uses those
// counters as snapshot versions for cache keying.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/model"
	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
)

// Store implements scope.Provider, guardrail.Provider, and model.Catalog
// against the external system's PostgreSQL schema.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL using the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle. Useful for tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot materializes the current scope graph.
func (s *Store) Snapshot(ctx context.Context) (*scope.Snapshot, error) {
	snap := &scope.Snapshot{
		Organizations: make(map[string]*scope.Organization),
		Groups:        make(map[string]*scope.Group),
		Spaces:        make(map[string]*scope.Space),
		Areas:         make(map[string]*scope.Area),
		Resources:     make(map[string]*scope.Resource),
		SpaceGrants:   make(map[string][]scope.MembershipGrant),
		AreaGrants:    make(map[string][]scope.MembershipGrant),
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT revision::text FROM scope_revision`,
	).Scan(&snap.Version); err != nil {
		return nil, fmt.Errorf("query scope revision: %w", err)
	}

	if err := s.loadOrganizations(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadGroups(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadSpaces(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadAreas(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadResources(ctx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *Store) loadOrganizations(ctx context.Context, snap *scope.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(default_tier, ''), COALESCE(allowed_tiers, '{}')
		   FROM organizations`,
	)
	if err != nil {
		return fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var org scope.Organization
		var allowedTiers []byte
		if err := rows.Scan(&org.ID, &org.Name, &org.DefaultTier, &allowedTiers); err != nil {
			return fmt.Errorf("scan organization: %w", err)
		}
		org.AllowedTiers = parseTextArray(allowedTiers)
		snap.Organizations[org.ID] = &org
	}
	return rows.Err()
}

func (s *Store) loadGroups(ctx context.Context, snap *scope.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name FROM groups`,
	)
	if err != nil {
		return fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g scope.Group
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Name); err != nil {
			return fmt.Errorf("scan group: %w", err)
		}
		snap.Groups[g.ID] = &g
	}
	return rows.Err()
}

func (s *Store) loadSpaces(ctx context.Context, snap *scope.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name, kind, org_wide, COALESCE(created_by, '')
		   FROM spaces`,
	)
	if err != nil {
		return fmt.Errorf("query spaces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sp scope.Space
		var kind string
		if err := rows.Scan(&sp.ID, &sp.OrganizationID, &sp.Name, &kind, &sp.OrgWide, &sp.CreatedBy); err != nil {
			return fmt.Errorf("scan space: %w", err)
		}
		sp.Kind = scope.SpaceKind(kind)
		snap.Spaces[sp.ID] = &sp
	}
	if err := rows.Err(); err != nil {
		return err
	}

	accessRows, err := s.db.QueryContext(ctx,
		`SELECT space_id, group_id, access_level FROM space_group_access`,
	)
	if err != nil {
		return fmt.Errorf("query space group access: %w", err)
	}
	defer accessRows.Close()

	for accessRows.Next() {
		var spaceID, groupID, level string
		if err := accessRows.Scan(&spaceID, &groupID, &level); err != nil {
			return fmt.Errorf("scan space group access: %w", err)
		}
		sp := snap.Spaces[spaceID]
		if sp == nil {
			continue
		}
		if sp.GroupAccess == nil {
			sp.GroupAccess = make(map[string]role.Role)
		}
		sp.GroupAccess[groupID] = parseRole(level)
	}
	if err := accessRows.Err(); err != nil {
		return err
	}

	return s.loadGrants(ctx,
		`SELECT space_id, COALESCE(user_id, ''), COALESCE(group_id, ''), role FROM space_members`,
		snap.SpaceGrants)
}

func (s *Store) loadAreas(ctx context.Context, snap *scope.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, space_id, name, restricted, COALESCE(created_by, '') FROM areas`,
	)
	if err != nil {
		return fmt.Errorf("query areas: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a scope.Area
		if err := rows.Scan(&a.ID, &a.SpaceID, &a.Name, &a.Restricted, &a.CreatedBy); err != nil {
			return fmt.Errorf("scan area: %w", err)
		}
		snap.Areas[a.ID] = &a
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return s.loadGrants(ctx,
		`SELECT area_id, COALESCE(user_id, ''), COALESCE(group_id, ''), role FROM area_members`,
		snap.AreaGrants)
}

// loadGrants fills a container-keyed grant map from a membership table.
func (s *Store) loadGrants(ctx context.Context, query string, dest map[string][]scope.MembershipGrant) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query membership grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var containerID, userID, groupID, roleStr string
		if err := rows.Scan(&containerID, &userID, &groupID, &roleStr); err != nil {
			return fmt.Errorf("scan membership grant: %w", err)
		}
		dest[containerID] = append(dest[containerID], scope.MembershipGrant{
			UserID:  userID,
			GroupID: groupID,
			Role:    parseRole(roleStr),
		})
	}
	return rows.Err()
}

func (s *Store) loadResources(ctx context.Context, snap *scope.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, area_id, owner_id, visibility, deleted_at IS NOT NULL FROM resources`,
	)
	if err != nil {
		return fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r scope.Resource
		var visibility string
		if err := rows.Scan(&r.ID, &r.AreaID, &r.OwnerID, &visibility, &r.Deleted); err != nil {
			return fmt.Errorf("scan resource: %w", err)
		}
		r.Visibility = scope.Visibility(visibility)
		snap.Resources[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return err
	}

	shareRows, err := s.db.QueryContext(ctx,
		`SELECT resource_id, COALESCE(user_id, ''), COALESCE(group_id, ''), permission
		   FROM resource_shares`,
	)
	if err != nil {
		return fmt.Errorf("query resource shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var resourceID, userID, groupID, permission string
		if err := shareRows.Scan(&resourceID, &userID, &groupID, &permission); err != nil {
			return fmt.Errorf("scan resource share: %w", err)
		}
		res := snap.Resources[resourceID]
		if res == nil {
			continue
		}
		res.Shares = append(res.Shares, scope.ShareGrant{
			UserID:     userID,
			GroupID:    groupID,
			Permission: parseRole(permission),
		})
	}
	return shareRows.Err()
}

// Principal loads one principal with both membership kinds, or nil when the
// user does not exist.
func (s *Store) Principal(ctx context.Context, id string) (*scope.Principal, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if !exists {
		return nil, nil
	}

	p := &scope.Principal{ID: id}

	rows, err := s.db.QueryContext(ctx,
		`SELECT organization_id, role, COALESCE(tier_override, ''), COALESCE(profile_tier, '')
		   FROM org_memberships WHERE user_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query org memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m scope.OrgMembership
		var roleStr string
		if err := rows.Scan(&m.OrganizationID, &roleStr, &m.TierOverride, &m.ProfileTier); err != nil {
			return nil, fmt.Errorf("scan org membership: %w", err)
		}
		m.UserID = id
		m.Role = parseRole(roleStr)
		p.OrgMemberships = append(p.OrgMemberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groupRows, err := s.db.QueryContext(ctx,
		`SELECT group_id, role FROM group_memberships WHERE user_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query group memberships: %w", err)
	}
	defer groupRows.Close()

	for groupRows.Next() {
		var m scope.GroupMembership
		var roleStr string
		if err := groupRows.Scan(&m.GroupID, &roleStr); err != nil {
			return nil, fmt.Errorf("scan group membership: %w", err)
		}
		m.UserID = id
		m.Role = parseRole(roleStr)
		p.GroupMemberships = append(p.GroupMemberships, m)
	}
	if err := groupRows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

// Guardrails materializes the current guardrail set.
func (s *Store) Guardrails(ctx context.Context) (*guardrail.Set, error) {
	set := &guardrail.Set{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT revision::text FROM guardrail_revision`,
	).Scan(&set.Version); err != nil {
		return nil, fmt.Errorf("query guardrail revision: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, level, COALESCE(scope_id, ''), action, priority, active,
		        COALESCE(condition, ''), config
		   FROM guardrails`,
	)
	if err != nil {
		return nil, fmt.Errorf("query guardrails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g guardrail.Guardrail
		var typ, level, action string
		var config []byte
		if err := rows.Scan(&g.ID, &typ, &level, &g.ScopeID, &action, &g.Priority, &g.Active, &g.Condition, &config); err != nil {
			return nil, fmt.Errorf("scan guardrail: %w", err)
		}
		g.Type = guardrail.Type(typ)
		g.Level = guardrail.Level(level)
		g.Action = guardrail.Action(action)
		if len(config) > 0 {
			// A config that fails to decode stays nil and aggregates as
			// most-restrictive; never fail the whole snapshot for one row.
			_ = json.Unmarshal(config, &g.Config)
		}
		set.Guardrails = append(set.Guardrails, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return set, nil
}

// Model returns one model from the catalog, or nil when unknown.
func (s *Store) Model(ctx context.Context, id string) (*model.Model, error) {
	var m model.Model
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tier, enabled, requires_approval FROM models WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Tier, &m.Enabled, &m.RequiresApproval)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query model: %w", err)
	}
	return &m, nil
}

// Tiers returns all known tiers ordered by rank.
func (s *Store) Tiers(ctx context.Context) ([]model.Tier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rank FROM tiers ORDER BY rank`,
	)
	if err != nil {
		return nil, fmt.Errorf("query tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.Rank); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// parseRole maps an unknown role string to RoleNone so a corrupt row denies
// instead of failing the snapshot.
func parseRole(s string) role.Role {
	r, err := role.Parse(s)
	if err != nil {
		return role.RoleNone
	}
	return r
}

// parseTextArray decodes a PostgreSQL text[] literal like {a,b}. Values
// containing commas or braces are not expected in tier names.
func parseTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s == "{}" {
		return nil
	}
	s = s[1 : len(s)-1]
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if item := s[start:i]; item != "" {
				out = append(out, item)
			}
			start = i + 1
		}
	}
	return out
}

// Compile-time interface verification.
var (
	_ scope.Provider     = (*Store)(nil)
	_ guardrail.Provider = (*Store)(nil)
	_ model.Catalog      = (*Store)(nil)
)
