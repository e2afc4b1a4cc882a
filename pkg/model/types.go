package model

// HashValue is a lowercase hex digest.
type HashValue string

// ShortHash returns the first 12 characters for display.
func (h HashValue) ShortHash() string {
	s := string(h)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// DefaultHashField is the key that holds the declared hash in
// telemetry.event.v1 records.
const DefaultHashField = "canonicalHash"

// Event envelope constants for telemetry.event.v1.
const (
	SchemaVersionEventV1  = "telemetry.event.v1"
	PayloadTypeForensicV1 = "qube_forensic_report.v1"
	UnknownCaseID         = "unknown"
)

// Ingest rules for qube_forensic_report.v1 events.
const (
	SealPhrase         = "Canonical truth, attested and replayable."
	EmbeddingDimension = 1536
)
