package model

// Status is the externally observable state of one verification.
type Status string

const (
	// StatusPending is the transient state before computation completes.
	StatusPending Status = "PENDING"
	// StatusPass means the computed digest equals the declared hash.
	StatusPass Status = "PASS"
	// StatusFail means the computation succeeded but the digests differ.
	StatusFail Status = "FAIL"
	// StatusError means the digest could not be computed. It is a tooling
	// fault, never a verdict.
	StatusError Status = "ERROR"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusPass || s == StatusFail || s == StatusError
}

// Result is the outcome of a completed verification.
type Result struct {
	Status         Status    `json:"status"`
	ComputedDigest HashValue `json:"computed_digest"`
	DeclaredHash   HashValue `json:"declared_hash"`
	HashField      string    `json:"hash_field"`
	Algorithm      string    `json:"algorithm"`
	Line           int       `json:"line,omitempty"`
	EventKey       string    `json:"event_key,omitempty"`
	CaseID         string    `json:"case_id,omitempty"`
}

// TamperDetected reports whether the record failed verification.
func (r *Result) TamperDetected() bool {
	return r.Status == StatusFail
}
