package model

import "time"

// AuditEventType identifies the type of auditable event.
type AuditEventType string

const (
	EventTypeVerify      AuditEventType = "verify"
	EventTypeVerifyError AuditEventType = "verify_error"
	EventTypeSeal        AuditEventType = "seal"
)

// AuditRecordHashField is the key holding each audit entry's own hash.
const AuditRecordHashField = "record_hash"

// AuditRecord is a single line in the verdict audit log (JSONL format).
type AuditRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	RunID          string         `json:"run_id"`
	EventType      AuditEventType `json:"event_type"`
	Source         string         `json:"source,omitempty"`
	Line           int            `json:"line,omitempty"`
	EventKey       string         `json:"event_key,omitempty"`
	Status         Status         `json:"status"`
	DeclaredHash   HashValue      `json:"declared_hash,omitempty"`
	ComputedDigest HashValue      `json:"computed_digest,omitempty"`
	Error          string         `json:"error,omitempty"`
	PrevHash       HashValue      `json:"prev_hash"`
	RecordHash     HashValue      `json:"record_hash"`
}
