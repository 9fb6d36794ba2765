// Package model contains the LLM model catalog types and the availability
// decision vocabulary.
package model

import "context"

// Model is one invocable LLM model.
type Model struct {
	ID   string
	Name string
	// Tier is the subscription tier the model belongs to. Every model
	// belongs to exactly one tier.
	Tier string
	// Enabled is the platform kill-switch. A disabled model is
	// unavailable to everyone regardless of policy.
	Enabled bool
	// RequiresApproval marks models that need an explicit out-of-band
	// grant before use. The grant mechanism is external; the resolver
	// only enforces the flag.
	RequiresApproval bool
}

// Tier is a named, orderable subscription bundle.
type Tier struct {
	ID   string
	Name string
	// Rank orders tiers; a higher rank is a larger bundle.
	Rank int
}

// Catalog provides model and tier lookups for one resolution call.
type Catalog interface {
	// Model returns the model with the given ID, or nil when unknown.
	Model(ctx context.Context, id string) (*Model, error)
	// Tiers returns all known tiers.
	Tiers(ctx context.Context) ([]Tier, error)
}

// Reason explains why a model was denied.
type Reason string

const (
	// ReasonModelDisabled means the model does not exist or the platform
	// kill-switch is off.
	ReasonModelDisabled Reason = "model_disabled"
	// ReasonTierNotSubscribed means the model's tier is outside the
	// principal's allowed tier set.
	ReasonTierNotSubscribed Reason = "tier_not_subscribed"
	// ReasonGuardrailBlocked means the model is on a merged denylist.
	ReasonGuardrailBlocked Reason = "guardrail_blocked"
	// ReasonGuardrailNotAllowed means an allowlist exists and the model
	// is not on it.
	ReasonGuardrailNotAllowed Reason = "guardrail_not_allowed"
	// ReasonApprovalRequired means the model needs an out-of-band grant
	// the principal does not hold.
	ReasonApprovalRequired Reason = "approval_required"
)

// Availability is the outcome of a CanUseModel check.
type Availability struct {
	Allowed bool
	// Reason is set only when Allowed is false.
	Reason Reason
}
