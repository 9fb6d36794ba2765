package service_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/scopegate/scopegate/internal/adapter/outbound/memory"
	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/model"
	"github.com/scopegate/scopegate/internal/domain/role"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// env wires the full service stack against in-memory stores.
type env struct {
	scopes     *memory.MemoryScopeStore
	guardrails *memory.MemoryGuardrailStore
	catalog    *memory.MemoryModelCatalog
	approvals  *memory.MemoryApprovalGrants
	audits     *memory.MemoryAuditStore

	access    *service.AccessService
	policy    *service.GuardrailService
	models    *service.ModelService
	validator *service.RequestValidator
}

// newEnv builds the stack with the shared fixture: one organization on the
// pro tier with an engineering group, an organizational space granting that
// group admin, and a model catalog covering the denial reasons.
func newEnv(t *testing.T) *env {
	t.Helper()
	logger := testLogger()

	e := &env{
		scopes:     memory.NewScopeStore(),
		guardrails: memory.NewGuardrailStore(),
		catalog:    memory.NewModelCatalog(),
		approvals:  memory.NewApprovalGrants(),
		audits:     memory.NewAuditStoreWithWriter(io.Discard),
	}

	e.scopes.SetSnapshot(&scope.Snapshot{
		Organizations: map[string]*scope.Organization{
			"org-1": {ID: "org-1", Name: "Acme", DefaultTier: "free", AllowedTiers: []string{"free", "pro"}},
		},
		Groups: map[string]*scope.Group{
			"group-eng": {ID: "group-eng", OrganizationID: "org-1", Name: "Engineering"},
		},
		Spaces: map[string]*scope.Space{
			"space-eng": {
				ID:             "space-eng",
				OrganizationID: "org-1",
				Kind:           scope.SpaceOrganizational,
				GroupAccess:    map[string]role.Role{"group-eng": role.RoleAdmin},
			},
		},
		Areas: map[string]*scope.Area{
			"area-docs":   {ID: "area-docs", SpaceID: "space-eng"},
			"area-secret": {ID: "area-secret", SpaceID: "space-eng", Restricted: true, CreatedBy: "user-creator"},
		},
		Resources: map[string]*scope.Resource{
			"res-1": {ID: "res-1", AreaID: "area-docs", OwnerID: "user-owner", Visibility: scope.VisibilityArea},
			"res-2": {ID: "res-2", AreaID: "area-docs", OwnerID: "user-owner", Visibility: scope.VisibilityPrivate},
		},
		SpaceGrants: map[string][]scope.MembershipGrant{},
		AreaGrants:  map[string][]scope.MembershipGrant{},
	})

	e.scopes.SetPrincipal(&scope.Principal{
		ID:               "user-1",
		OrgMemberships:   []scope.OrgMembership{{OrganizationID: "org-1", UserID: "user-1", Role: role.RoleMember, ProfileTier: "pro"}},
		GroupMemberships: []scope.GroupMembership{{GroupID: "group-eng", UserID: "user-1", Role: role.RoleMember}},
	})
	e.scopes.SetPrincipal(&scope.Principal{
		ID:             "user-free",
		OrgMemberships: []scope.OrgMembership{{OrganizationID: "org-1", UserID: "user-free", Role: role.RoleMember}},
	})

	e.catalog.SetModel(model.Model{ID: "sonnet", Name: "Sonnet", Tier: "pro", Enabled: true})
	e.catalog.SetModel(model.Model{ID: "opus", Name: "Opus", Tier: "max", Enabled: true})
	e.catalog.SetModel(model.Model{ID: "legacy", Name: "Legacy", Tier: "free", Enabled: false})
	e.catalog.SetModel(model.Model{ID: "research", Name: "Research", Tier: "pro", Enabled: true, RequiresApproval: true})
	e.catalog.SetTiers([]model.Tier{
		{ID: "free", Name: "Free", Rank: 1},
		{ID: "pro", Name: "Pro", Rank: 2},
		{ID: "max", Name: "Max", Rank: 3},
	})

	var err error
	e.policy, err = service.NewGuardrailService(e.guardrails, logger)
	if err != nil {
		t.Fatalf("NewGuardrailService: %v", err)
	}

	e.access = service.NewAccessService(e.scopes, logger, service.WithAuditStore(e.audits))
	e.models = service.NewModelService(e.catalog, e.scopes, e.policy, logger,
		service.WithApprovalGrants(e.approvals),
		service.WithModelAuditStore(e.audits),
	)
	e.validator = service.NewRequestValidator(e.models, e.policy, e.scopes, logger,
		service.WithValidatorAuditStore(e.audits),
	)

	return e
}

// blockRule builds an active block-action guardrail for tests.
func blockRule(id string, typ guardrail.Type, level guardrail.Level, scopeID string, config map[string]any) guardrail.Guardrail {
	return guardrail.Guardrail{
		ID:      id,
		Type:    typ,
		Level:   level,
		ScopeID: scopeID,
		Action:  guardrail.ActionBlock,
		Active:  true,
		Config:  config,
	}
}
