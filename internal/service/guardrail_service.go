// Package service contains the application services composing the domain
// resolvers with snapshot providers, caching, auditing, and metrics.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocel "github.com/google/cel-go/cel"

	celeval "github.com/scopegate/scopegate/internal/adapter/outbound/cel"
	"github.com/scopegate/scopegate/internal/domain/guardrail"
	"github.com/scopegate/scopegate/internal/domain/scope"
	"github.com/scopegate/scopegate/internal/metrics"
)

// RequestContext carries request-specific values that guardrail conditions
// may reference. A nil RequestContext means resolution happens outside any
// specific request.
type RequestContext struct {
	ModelID     string
	InputTokens int64
	Time        time.Time
}

// compiledCondition memoizes one compiled guardrail condition. A nil program
// with a non-nil err records a compile failure, which keeps the rule applied
// (fail closed).
type compiledCondition struct {
	program gocel.Program
	err     error
}

// GuardrailService implements the Guardrail Aggregator: it collects active
// guardrails applicable to a principal across the four scope levels, filters
// them through optional CEL conditions, and merges them with the fixed
// per-type combinators.
//
// Resolved policies for principals with no conditional guardrails are cached
// in a bounded LRU keyed by xxhash of (principal memberships, snapshot
// version). Conditional resolutions depend on request context and are never
// cached.
type GuardrailService struct {
	provider  guardrail.Provider
	evaluator *celeval.Evaluator
	programs  sync.Map // condition string -> *compiledCondition
	cache     *policyCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// GuardrailServiceOption configures GuardrailService.
type GuardrailServiceOption func(*GuardrailService)

// WithPolicyCacheSize sets the maximum number of cached resolutions.
func WithPolicyCacheSize(size int) GuardrailServiceOption {
	return func(s *GuardrailService) {
		s.cache = newPolicyCache(size)
	}
}

// WithGuardrailMetrics attaches Prometheus metrics.
func WithGuardrailMetrics(m *metrics.Metrics) GuardrailServiceOption {
	return func(s *GuardrailService) {
		s.metrics = m
	}
}

// NewGuardrailService creates a new GuardrailService.
func NewGuardrailService(provider guardrail.Provider, logger *slog.Logger, opts ...GuardrailServiceOption) (*GuardrailService, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	s := &GuardrailService{
		provider:  provider,
		evaluator: evaluator,
		cache:     newPolicyCache(1000),
		logger:    logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Resolve produces the effective policy for a principal. The reqCtx is
// optional; when present, conditional guardrails see the request's model and
// token count.
func (s *GuardrailService) Resolve(ctx context.Context, p *scope.Principal, reqCtx *RequestContext) (PolicyResolution, error) {
	set, err := s.provider.Guardrails(ctx)
	if err != nil {
		return PolicyResolution{}, fmt.Errorf("failed to load guardrails: %w", err)
	}

	applicable := guardrail.Applicable(set, p)

	conditional := false
	for _, g := range applicable {
		if g.Condition != "" {
			conditional = true
			break
		}
	}

	orgIDs := make([]string, 0, len(p.OrgMemberships))
	for _, m := range p.OrgMemberships {
		orgIDs = append(orgIDs, m.OrganizationID)
	}

	var cacheKey uint64
	if !conditional {
		cacheKey = policyCacheKey(p.ID, p.GroupIDs(), orgIDs, set.Version)
		if cached, ok := s.cache.Get(cacheKey); ok {
			if s.metrics != nil {
				s.metrics.PolicyCacheHits.Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.PolicyCacheMisses.Inc()
		}
	}

	var condWarnings []guardrail.Warning
	if conditional {
		applicable, condWarnings = s.filterByCondition(applicable, p, orgIDs, reqCtx)
	}

	policy, warnings := guardrail.Aggregate(applicable)
	warnings = append(warnings, condWarnings...)

	for _, w := range warnings {
		s.logger.Warn("guardrail warning",
			"guardrail_id", w.GuardrailID,
			"type", w.Type,
			"message", w.Message,
		)
	}
	if s.metrics != nil && len(warnings) > 0 {
		s.metrics.GuardrailWarnings.Add(float64(len(warnings)))
	}

	result := PolicyResolution{Policy: policy, Warnings: warnings}

	if !conditional {
		s.cache.Put(cacheKey, result)
		if s.metrics != nil {
			s.metrics.PolicyCacheSize.Set(float64(s.cache.Size()))
		}
	}

	return result, nil
}

// InvalidateCache drops every cached resolution. Callers should invoke this
// when they know the guardrail snapshot version moved without waiting for
// natural key divergence.
func (s *GuardrailService) InvalidateCache() {
	s.cache.Clear()
	if s.metrics != nil {
		s.metrics.PolicyCacheSize.Set(0)
	}
}

// filterByCondition drops guardrails whose CEL condition evaluates false.
// A condition that fails to compile or errors at evaluation keeps the rule
// applied and surfaces a warning: structural problems must never widen
// access.
func (s *GuardrailService) filterByCondition(rules []guardrail.Guardrail, p *scope.Principal, orgIDs []string, reqCtx *RequestContext) ([]guardrail.Guardrail, []guardrail.Warning) {
	condCtx := celeval.ConditionContext{
		PrincipalID: p.ID,
		OrgIDs:      orgIDs,
		GroupIDs:    p.GroupIDs(),
		RequestTime: time.Now().UTC(),
	}
	if reqCtx != nil {
		condCtx.ModelID = reqCtx.ModelID
		condCtx.InputTokens = reqCtx.InputTokens
		if !reqCtx.Time.IsZero() {
			condCtx.RequestTime = reqCtx.Time
		}
	}

	kept := make([]guardrail.Guardrail, 0, len(rules))
	var warnings []guardrail.Warning

	for _, g := range rules {
		if g.Condition == "" {
			kept = append(kept, g)
			continue
		}

		compiled := s.compileCondition(g.Condition)
		if compiled.err != nil {
			warnings = append(warnings, guardrail.Warning{
				GuardrailID: g.ID,
				Type:        g.Type,
				Message:     fmt.Sprintf("condition failed to compile, rule kept: %v", compiled.err),
			})
			kept = append(kept, g)
			continue
		}

		matched, err := s.evaluator.Evaluate(compiled.program, condCtx)
		if err != nil {
			warnings = append(warnings, guardrail.Warning{
				GuardrailID: g.ID,
				Type:        g.Type,
				Message:     fmt.Sprintf("condition evaluation failed, rule kept: %v", err),
			})
			kept = append(kept, g)
			continue
		}

		if matched {
			kept = append(kept, g)
		}
	}

	return kept, warnings
}

// compileCondition compiles a condition once and memoizes the outcome,
// including failures.
func (s *GuardrailService) compileCondition(condition string) *compiledCondition {
	if cached, ok := s.programs.Load(condition); ok {
		return cached.(*compiledCondition)
	}

	compiled := &compiledCondition{}
	if err := s.evaluator.ValidateExpression(condition); err != nil {
		compiled.err = err
	} else {
		compiled.program, compiled.err = s.evaluator.Compile(condition)
	}

	actual, _ := s.programs.LoadOrStore(condition, compiled)
	return actual.(*compiledCondition)
}
