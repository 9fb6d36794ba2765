// Package audit contains domain types for decision audit records.
package audit

import "time"

// Decision constants for audit records.
const (
	// DecisionAllow indicates the check was granted.
	DecisionAllow = "allow"
	// DecisionDeny indicates the check was denied.
	DecisionDeny = "deny"
)

// TargetType constants identify what was being resolved.
const (
	TargetTypeSpace    = "space"
	TargetTypeArea     = "area"
	TargetTypeResource = "resource"
	TargetTypeModel    = "model"
	TargetTypeRequest  = "request"
)

// Record represents a single resolved access or policy decision.
type Record struct {
	// Timestamp is when the decision was produced (UTC).
	Timestamp time.Time `json:"timestamp"`
	// RequestID correlates records across systems.
	RequestID string `json:"request_id"`
	// PrincipalID of the user whose access was resolved.
	PrincipalID string `json:"principal_id"`
	// TargetType is one of the TargetType constants.
	TargetType string `json:"target_type"`
	// TargetID is the space, area, resource, or model ID.
	TargetID string `json:"target_id"`
	// Decision is "allow" or "deny".
	Decision string `json:"decision"`
	// Role is the resolved role for container decisions, if any.
	Role string `json:"role,omitempty"`
	// Source is the grant path for container decisions, if any.
	Source string `json:"source,omitempty"`
	// Reason is the denial reason for model and request decisions, if any.
	Reason string `json:"reason,omitempty"`
	// Warnings counts structural warnings surfaced during resolution.
	Warnings int `json:"warnings,omitempty"`
	// LatencyMicros is the resolution latency in microseconds.
	LatencyMicros int64 `json:"latency_micros"`
}
