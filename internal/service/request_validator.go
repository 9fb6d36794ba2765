package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scopegate/scopegate/internal/domain/audit"
	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/metrics"
)

// Request is one proposed LLM call. Usage and spend counters are inputs
// supplied by the caller: the engine never owns usage accounting, avoiding
// a second source of truth.
type Request struct {
	PrincipalID string
	ModelID     string
	InputTokens int64
	Content     string
	Usage       Usage
}

// Usage carries the caller-supplied running counters for the current
// periods. Missing buckets count as zero.
type Usage struct {
	// Requests maps each period bucket to the requests already made.
	Requests map[guardrail.Period]int64
	// Spend maps each period bucket to the spend already accrued.
	Spend map[guardrail.Period]float64
}

// DenyReason explains a validation denial. Model availability reasons pass
// through untranslated; mapping reasons to user-facing copy is a UI concern.
type DenyReason string

const (
	// ReasonTokenLimitExceeded means input tokens exceed the resolved cap.
	ReasonTokenLimitExceeded DenyReason = "token_limit_exceeded"
	// ReasonRateLimitExceeded means a period bucket is exhausted.
	ReasonRateLimitExceeded DenyReason = "rate_limit_exceeded"
	// ReasonBudgetExceeded means a spend bucket is exhausted.
	ReasonBudgetExceeded DenyReason = "budget_exceeded"
	// ReasonContentBlocked means the content matched a blocked pattern.
	ReasonContentBlocked DenyReason = "content_blocked"
)

// ValidationResult is the outcome of validating one proposed request.
type ValidationResult struct {
	Allowed bool
	// Reason is set only when Allowed is false.
	Reason DenyReason
	// Warnings carries structural guardrail warnings surfaced while
	// resolving the policy; a warning never changes the decision.
	Warnings []guardrail.Warning
}

// RequestValidator runs the end-to-end check for one proposed LLM call:
// model availability, token cap, rate and budget buckets, content filter,
// stopping at the first violation.
type RequestValidator struct {
	models     *ModelService
	guardrails *GuardrailService
	scopes     scope.Provider
	audits     audit.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// RequestValidatorOption configures RequestValidator.
type RequestValidatorOption func(*RequestValidator)

// WithValidatorAuditStore attaches a decision audit store.
func WithValidatorAuditStore(store audit.Store) RequestValidatorOption {
	return func(v *RequestValidator) {
		v.audits = store
	}
}

// WithValidatorMetrics attaches Prometheus metrics.
func WithValidatorMetrics(m *metrics.Metrics) RequestValidatorOption {
	return func(v *RequestValidator) {
		v.metrics = m
	}
}

// NewRequestValidator creates a new RequestValidator.
func NewRequestValidator(models *ModelService, guardrails *GuardrailService, scopes scope.Provider, logger *slog.Logger, opts ...RequestValidatorOption) *RequestValidator {
	v := &RequestValidator{
		models:     models,
		guardrails: guardrails,
		scopes:     scopes,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks one proposed request. The policy resolution and scope
// snapshot fetch have no ordering dependency and run concurrently.
func (v *RequestValidator) Validate(ctx context.Context, req Request) (ValidationResult, error) {
	start := time.Now()

	p, err := v.scopes.Principal(ctx, req.PrincipalID)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to load principal: %w", err)
	}
	if p == nil {
		p = &scope.Principal{ID: req.PrincipalID}
	}

	var (
		wg         sync.WaitGroup
		resolution PolicyResolution
		resolveErr error
		snap       *scope.Snapshot
		snapErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		resolution, resolveErr = v.guardrails.Resolve(ctx, p, &RequestContext{
			ModelID:     req.ModelID,
			InputTokens: req.InputTokens,
		})
	}()
	go func() {
		defer wg.Done()
		snap, snapErr = v.scopes.Snapshot(ctx)
	}()
	wg.Wait()

	if resolveErr != nil {
		return ValidationResult{}, resolveErr
	}
	if snapErr != nil {
		return ValidationResult{}, fmt.Errorf("failed to load scope snapshot: %w", snapErr)
	}

	result, err := v.validate(ctx, snap, p, req, resolution)
	if err != nil {
		return ValidationResult{}, err
	}

	v.record(ctx, req, result, start)
	return result, nil
}

func (v *RequestValidator) validate(ctx context.Context, snap *scope.Snapshot, p *scope.Principal, req Request, resolution PolicyResolution) (ValidationResult, error) {
	policy := resolution.Policy
	deny := func(reason DenyReason) ValidationResult {
		return ValidationResult{Allowed: false, Reason: reason, Warnings: resolution.Warnings}
	}

	avail, err := v.models.canUseModel(ctx, snap, p, req.ModelID, policy)
	if err != nil {
		return ValidationResult{}, err
	}
	if !avail.Allowed {
		return deny(DenyReason(avail.Reason)), nil
	}

	if policy.MaxInputTokens != guardrail.Unlimited && req.InputTokens > policy.MaxInputTokens {
		return deny(ReasonTokenLimitExceeded), nil
	}

	for _, period := range guardrail.Periods {
		limit, ok := policy.RateLimits[period]
		if ok && req.Usage.Requests[period] >= limit {
			return deny(ReasonRateLimitExceeded), nil
		}
	}

	for _, period := range guardrail.Periods {
		limit, ok := policy.BudgetLimits[period]
		if ok && req.Usage.Spend[period] >= limit {
			return deny(ReasonBudgetExceeded), nil
		}
	}

	if pattern, blocked := matchBlockedPattern(req.Content, policy.BlockedPatterns); blocked {
		v.logger.Debug("content blocked", "principal_id", p.ID, "pattern", pattern)
		return deny(ReasonContentBlocked), nil
	}

	return ValidationResult{Allowed: true, Warnings: resolution.Warnings}, nil
}

// matchBlockedPattern does a case-insensitive substring match of each
// pattern against the content. Any matching pattern from any source blocks.
func matchBlockedPattern(content string, patterns []string) (string, bool) {
	if len(patterns) == 0 || content == "" {
		return "", false
	}
	lower := strings.ToLower(content)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return pattern, true
		}
	}
	return "", false
}

func (v *RequestValidator) record(ctx context.Context, req Request, result ValidationResult, start time.Time) {
	outcome := audit.DecisionDeny
	if result.Allowed {
		outcome = audit.DecisionAllow
	}

	if v.metrics != nil {
		v.metrics.ResolutionsTotal.WithLabelValues(audit.TargetTypeRequest, outcome).Inc()
		v.metrics.ResolutionDuration.WithLabelValues(audit.TargetTypeRequest).Observe(time.Since(start).Seconds())
	}

	if v.audits == nil {
		return
	}

	rec := audit.Record{
		Timestamp:     time.Now().UTC(),
		RequestID:     requestID(ctx),
		PrincipalID:   req.PrincipalID,
		TargetType:    audit.TargetTypeRequest,
		TargetID:      req.ModelID,
		Decision:      outcome,
		Reason:        string(result.Reason),
		Warnings:      len(result.Warnings),
		LatencyMicros: time.Since(start).Microseconds(),
	}

	if err := v.audits.Append(ctx, rec); err != nil {
		if v.metrics != nil {
			v.metrics.AuditDropsTotal.Inc()
		}
		v.logger.Warn("audit append failed", "target_type", audit.TargetTypeRequest, "target_id", req.ModelID, "error", err)
	}
}
