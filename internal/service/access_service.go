package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scopegate/scopegate/internal/ctxkey"
	"github.com/scopegate/scopegate/internal/domain/access"
	"github.com/scopegate/scopegate/internal/domain/audit"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/metrics"
)

// AccessService resolves space, area, and resource access against the
// current scope snapshot. It is stateless per call: every resolution is a
// pure function of the snapshot, so concurrent calls need no locking.
type AccessService struct {
	scopes  scope.Provider
	audits  audit.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// AccessServiceOption configures AccessService.
type AccessServiceOption func(*AccessService)

// WithAuditStore attaches a decision audit store.
func WithAuditStore(store audit.Store) AccessServiceOption {
	return func(s *AccessService) {
		s.audits = store
	}
}

// WithAccessMetrics attaches Prometheus metrics.
func WithAccessMetrics(m *metrics.Metrics) AccessServiceOption {
	return func(s *AccessService) {
		s.metrics = m
	}
}

// NewAccessService creates a new AccessService.
func NewAccessService(scopes scope.Provider, logger *slog.Logger, opts ...AccessServiceOption) *AccessService {
	s := &AccessService{
		scopes: scopes,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// principal loads the principal, falling back to a bare principal with no
// memberships when the ID is unknown. External guest collaborators may hold
// explicit grants without any organization membership row.
func (s *AccessService) principal(ctx context.Context, principalID string) (*scope.Principal, error) {
	p, err := s.scopes.Principal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	if p == nil {
		return &scope.Principal{ID: principalID}, nil
	}
	return p, nil
}

// ResolveSpaceAccess decides access to a space for a principal.
// Returns access.ErrSpaceNotFound when the space does not exist; a denial
// for an existing space is not an error.
func (s *AccessService) ResolveSpaceAccess(ctx context.Context, principalID, spaceID string) (access.Decision, error) {
	start := time.Now()

	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return access.Denied(), fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.principal(ctx, principalID)
	if err != nil {
		return access.Denied(), err
	}

	decision, err := access.ResolveSpaceAccess(snap, p, spaceID)
	s.record(ctx, audit.TargetTypeSpace, spaceID, p.ID, decision, err, start)
	return decision, err
}

// ResolveAreaAccess decides access to an area for a principal.
// Returns access.ErrAreaNotFound when the area does not exist.
func (s *AccessService) ResolveAreaAccess(ctx context.Context, principalID, areaID string) (access.Decision, error) {
	start := time.Now()

	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return access.Denied(), fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.principal(ctx, principalID)
	if err != nil {
		return access.Denied(), err
	}

	decision, err := access.ResolveAreaAccess(snap, p, areaID)
	s.record(ctx, audit.TargetTypeArea, areaID, p.ID, decision, err, start)
	return decision, err
}

// ResolveResourceAccess is the set-membership test for one leaf resource.
// Deleted and unknown resources both return access.ErrResourceNotFound.
func (s *AccessService) ResolveResourceAccess(ctx context.Context, principalID, resourceID string) (bool, error) {
	start := time.Now()

	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.principal(ctx, principalID)
	if err != nil {
		return false, err
	}

	granted, err := access.ResolveResourceAccess(snap, p, resourceID)
	decision := access.Denied()
	if granted {
		decision = access.Decision{Granted: true}
	}
	s.record(ctx, audit.TargetTypeResource, resourceID, p.ID, decision, err, start)
	return granted, err
}

// AccessibleResources computes the accessible resource ID set once for a
// principal. List, search, and count callers must share the returned set
// within one request so the three operations can never disagree.
func (s *AccessService) AccessibleResources(ctx context.Context, principalID string) (map[string]struct{}, error) {
	snap, err := s.scopes.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope snapshot: %w", err)
	}
	p, err := s.principal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return access.AccessibleResources(snap, p), nil
}

// record emits an audit record and metrics for one resolution. Audit
// failures are counted and logged, never propagated: a broken audit sink
// must not affect the decision.
func (s *AccessService) record(ctx context.Context, targetType, targetID, principalID string, decision access.Decision, resolveErr error, start time.Time) {
	outcome := audit.DecisionDeny
	if decision.Granted {
		outcome = audit.DecisionAllow
	}

	if s.metrics != nil {
		s.metrics.ResolutionsTotal.WithLabelValues(targetType, outcome).Inc()
		s.metrics.ResolutionDuration.WithLabelValues(targetType).Observe(time.Since(start).Seconds())
	}

	if s.audits == nil {
		return
	}

	rec := audit.Record{
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID(ctx),
		PrincipalID:   principalID,
		TargetType:    targetType,
		TargetID:      targetID,
		Decision:      outcome,
		Role:          string(decision.Role),
		Source:        string(decision.Source),
		LatencyMicros: time.Since(start).Microseconds(),
	}
	if resolveErr != nil && isNotFound(resolveErr) {
		rec.Reason = "not_found"
	}

	if err := s.audits.Append(ctx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.AuditDropsTotal.Inc()
		}
		s.logger.Warn("audit append failed", "target_type", targetType, "target_id", targetID, "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, access.ErrSpaceNotFound) ||
		errors.Is(err, access.ErrAreaNotFound) ||
		errors.Is(err, access.ErrResourceNotFound)
}

// requestID returns the caller-provided correlation ID from the context,
// minting a fresh one when absent.
func requestID(ctx context.Context) string {
	if id, ok := ctxkey.RequestID(ctx); ok {
		return id
	}
	return uuid.New().String()
}
