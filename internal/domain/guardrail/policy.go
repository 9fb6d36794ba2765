package guardrail

// Unlimited marks a numeric limit that no guardrail constrains.
const Unlimited int64 = -1

// ResolvedPolicy is the merged outcome of aggregating every applicable
// guardrail for one principal. It is pure data with no scope information;
// once resolved it may be cached for the remainder of a single request.
type ResolvedPolicy struct {
	// AllowedModels is the intersection of all model allowlists.
	// Meaningful only when HasModelAllowlist is true; absence of any
	// allowlist means unrestricted.
	AllowedModels    map[string]struct{}
	HasModelAllowlist bool

	// DeniedModels is the union of all model denylists. A denied model
	// stays denied regardless of any allowlist.
	DeniedModels map[string]struct{}

	// AllowedTiers is the intersection of all tier allowlists.
	// Meaningful only when HasTierAllowlist is true.
	AllowedTiers    map[string]struct{}
	HasTierAllowlist bool

	// MaxInputTokens and MaxOutputTokens are the minimum caps across all
	// token limits, or Unlimited.
	MaxInputTokens  int64
	MaxOutputTokens int64

	// RateLimits maps each period bucket to the minimum request cap.
	// Absent buckets are unlimited.
	RateLimits map[Period]int64

	// BudgetLimits maps each period bucket to the minimum spend cap.
	BudgetLimits map[Period]float64

	// BlockedPatterns is the union of all content filter patterns.
	BlockedPatterns []string
}

// NewResolvedPolicy returns an unrestricted policy.
func NewResolvedPolicy() ResolvedPolicy {
	return ResolvedPolicy{
		DeniedModels:    make(map[string]struct{}),
		MaxInputTokens:  Unlimited,
		MaxOutputTokens: Unlimited,
		RateLimits:      make(map[Period]int64),
		BudgetLimits:    make(map[Period]float64),
	}
}

// ModelAllowed applies the denylist-beats-allowlist rule for one model.
func (p *ResolvedPolicy) ModelAllowed(modelID string) bool {
	if _, denied := p.DeniedModels[modelID]; denied {
		return false
	}
	if p.HasModelAllowlist {
		_, ok := p.AllowedModels[modelID]
		return ok
	}
	return true
}

// ModelDenied reports whether the model is explicitly denylisted.
func (p *ResolvedPolicy) ModelDenied(modelID string) bool {
	_, denied := p.DeniedModels[modelID]
	return denied
}

// TierAllowed reports whether the tier survives the tier allowlist
// intersection. No allowlist means every tier is allowed.
func (p *ResolvedPolicy) TierAllowed(tier string) bool {
	if !p.HasTierAllowlist {
		return true
	}
	_, ok := p.AllowedTiers[tier]
	return ok
}
