package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scopegate/scopegate/internal/domain/audit"
	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/model"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/metrics"
)

// ApprovalGrants reports out-of-band grants for models that require
// approval. The grant mechanism is external; the engine only consults it.
type ApprovalGrants interface {
	HasGrant(ctx context.Context, principalID, modelID string) (bool, error)
}

// ModelService resolves model availability: subscription tier membership
// merged with the aggregated guardrail policy.
type ModelService struct {
	catalog    model.Catalog
	scopes     scope.Provider
	guardrails *GuardrailService
	approvals  ApprovalGrants
	audits     audit.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// ModelServiceOption configures ModelService.
type ModelServiceOption func(*ModelService)

// WithApprovalGrants attaches an out-of-band approval grant source.
func WithApprovalGrants(grants ApprovalGrants) ModelServiceOption {
	return func(s *ModelService) {
		s.approvals = grants
	}
}

// WithModelAuditStore attaches a decision audit store.
func WithModelAuditStore(store audit.Store) ModelServiceOption {
	return func(s *ModelService) {
		s.audits = store
	}
}

// WithModelMetrics attaches Prometheus metrics.
func WithModelMetrics(m *metrics.Metrics) ModelServiceOption {
	return func(s *ModelService) {
		s.metrics = m
	}
}

// NewModelService creates a new ModelService.
func NewModelService(catalog model.Catalog, scopes scope.Provider, guardrails *GuardrailService, logger *slog.Logger, opts ...ModelServiceOption) *ModelService {
	s := &ModelService{
		catalog:    catalog,
		scopes:     scopes,
		guardrails: guardrails,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUserAllowedTiers resolves the subscription tiers available to a
// principal. Per organization membership the tier is the explicit
// per-membership override, else the profile default, else the organization
// default; the result is intersected with the organization's globally
// allowed tier set. Tiers from multiple organizations union.
func (s *ModelService) GetUserAllowedTiers(ctx context.Context, principalID string) (map[string]struct{}, error) {
	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.scopes.Principal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	if p == nil {
		return map[string]struct{}{}, nil
	}
	return allowedTiers(snap, p), nil
}

// allowedTiers is the pure tier resolution over a snapshot.
func allowedTiers(snap *scope.Snapshot, p *scope.Principal) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range p.OrgMemberships {
		org := snap.Organizations[m.OrganizationID]
		if org == nil {
			// Membership row for an unknown organization grants nothing.
			continue
		}

		tier := m.TierOverride
		if tier == "" {
			tier = m.ProfileTier
		}
		if tier == "" {
			tier = org.DefaultTier
		}
		if tier == "" {
			continue
		}

		if len(org.AllowedTiers) > 0 && !contains(org.AllowedTiers, tier) {
			continue
		}
		out[tier] = struct{}{}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// CanUseModel decides whether the principal may use the model, with the
// denial reason when not. Checks short-circuit in a fixed order: kill
// switch, tier subscription, denylist, allowlist, approval flag.
func (s *ModelService) CanUseModel(ctx context.Context, principalID, modelID string) (model.Availability, error) {
	start := time.Now()

	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return model.Availability{}, fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.scopes.Principal(ctx, principalID)
	if err != nil {
		return model.Availability{}, fmt.Errorf("failed to load principal: %w", err)
	}
	if p == nil {
		p = &scope.Principal{ID: principalID}
	}

	resolution, err := s.guardrails.Resolve(ctx, p, &RequestContext{ModelID: modelID})
	if err != nil {
		return model.Availability{}, err
	}

	avail, err := s.canUseModel(ctx, snap, p, modelID, resolution.Policy)
	if err != nil {
		return model.Availability{}, err
	}

	s.record(ctx, p.ID, modelID, avail, len(resolution.Warnings), start)
	return avail, nil
}

// canUseModel runs the ordered availability checks against an already
// resolved policy. Shared with the request validator so a single request
// resolves policy exactly once.
func (s *ModelService) canUseModel(ctx context.Context, snap *scope.Snapshot, p *scope.Principal, modelID string, policy guardrail.ResolvedPolicy) (model.Availability, error) {
	m, err := s.catalog.Model(ctx, modelID)
	if err != nil {
		return model.Availability{}, fmt.Errorf("failed to load model: %w", err)
	}
	if m == nil || !m.Enabled {
		return model.Availability{Allowed: false, Reason: model.ReasonModelDisabled}, nil
	}

	tiers := allowedTiers(snap, p)
	if _, ok := tiers[m.Tier]; !ok || !policy.TierAllowed(m.Tier) {
		return model.Availability{Allowed: false, Reason: model.ReasonTierNotSubscribed}, nil
	}

	if policy.ModelDenied(m.ID) {
		return model.Availability{Allowed: false, Reason: model.ReasonGuardrailBlocked}, nil
	}

	if policy.HasModelAllowlist {
		if _, ok := policy.AllowedModels[m.ID]; !ok {
			return model.Availability{Allowed: false, Reason: model.ReasonGuardrailNotAllowed}, nil
		}
	}

	if m.RequiresApproval {
		granted := false
		if s.approvals != nil {
			granted, err = s.approvals.HasGrant(ctx, p.ID, m.ID)
			if err != nil {
				// Deny by default when the grant source is unavailable.
				s.logger.Warn("approval grant lookup failed", "principal_id", p.ID, "model_id", m.ID, "error", err)
				granted = false
			}
		}
		if !granted {
			return model.Availability{Allowed: false, Reason: model.ReasonApprovalRequired}, nil
		}
	}

	return model.Availability{Allowed: true}, nil
}

func (s *ModelService) record(ctx context.Context, principalID, modelID string, avail model.Availability, warnings int, start time.Time) {
	outcome := audit.DecisionDeny
	if avail.Allowed {
		outcome = audit.DecisionAllow
	}

	if s.metrics != nil {
		s.metrics.ResolutionsTotal.WithLabelValues(audit.TargetTypeModel, outcome).Inc()
		s.metrics.ResolutionDuration.WithLabelValues(audit.TargetTypeModel).Observe(time.Since(start).Seconds())
	}

	if s.audits == nil {
		return
	}

	rec := audit.Record{
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID(ctx),
		PrincipalID:   principalID,
		TargetType:    audit.TargetTypeModel,
		TargetID:      modelID,
		Decision:      outcome,
		Reason:        string(avail.Reason),
		Warnings:      warnings,
		LatencyMicros: time.Since(start).Microseconds(),
	}

	if err := s.audits.Append(ctx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.AuditDropsTotal.Inc()
		}
		s.logger.Warn("audit append failed", "target_type", audit.TargetTypeModel, "target_id", modelID, "error", err)
	}
}
