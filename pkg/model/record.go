package model

import (
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
)

// TelemetryRecord is one parsed telemetry record. It is treated as immutable
// once built; Without returns a shallow copy rather than editing Fields.
type TelemetryRecord struct {
	// Line is the 1-based source line, or 0 when the record was not read
	// from a file.
	Line   int
	Fields map[string]jsonutil.Value
}

// NewRecord builds a record from an object value. ok is false when v is not
// a JSON object.
func NewRecord(v jsonutil.Value, line int) (*TelemetryRecord, bool) {
	if v.Kind() != jsonutil.KindObject {
		return nil, false
	}
	fields := v.Members()
	if fields == nil {
		fields = map[string]jsonutil.Value{}
	}
	return &TelemetryRecord{Line: line, Fields: fields}, true
}

// Value returns the record as a JSON object value.
func (r *TelemetryRecord) Value() jsonutil.Value {
	return jsonutil.Object(r.Fields)
}

// Without returns a shallow copy of the record minus the named field.
func (r *TelemetryRecord) Without(field string) *TelemetryRecord {
	out := make(map[string]jsonutil.Value, len(r.Fields))
	for k, v := range r.Fields {
		if k == field {
			continue
		}
		out[k] = v
	}
	return &TelemetryRecord{Line: r.Line, Fields: out}
}

// With returns a shallow copy of the record with field set to v.
func (r *TelemetryRecord) With(field string, v jsonutil.Value) *TelemetryRecord {
	out := r.Without(field)
	out.Fields[field] = v
	return out
}

// StringField returns a top-level string field.
func (r *TelemetryRecord) StringField(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// EventKey returns the eventKey field, or "".
func (r *TelemetryRecord) EventKey() string {
	s, _ := r.StringField("eventKey")
	return s
}

// Timestamp returns the timestamp field, or "".
func (r *TelemetryRecord) Timestamp() string {
	s, _ := r.StringField("timestamp")
	return s
}

// PayloadType returns the payloadType field, or "".
func (r *TelemetryRecord) PayloadType() string {
	s, _ := r.StringField("payloadType")
	return s
}

// CaseID returns lineage.caseId, falling back to payload.caseId and then
// UnknownCaseID.
func (r *TelemetryRecord) CaseID() string {
	root := r.Value()
	for _, path := range [][]string{{"lineage", "caseId"}, {"payload", "caseId"}} {
		if v, ok := root.Path(path...); ok {
			if s, ok := v.AsString(); ok && s != "" {
				return s
			}
		}
	}
	return UnknownCaseID
}

// SnapshotDigests returns the sha256 digests listed under payload.snapshot
// for the sensor buffer, environment context and macro texture, keyed by
// their dotted path. Missing entries are omitted.
func (r *TelemetryRecord) SnapshotDigests() map[string]string {
	out := map[string]string{}
	root := r.Value()
	for _, name := range []string{"sensorBuffer", "environmentContext", "macroTexture"} {
		v, ok := root.Path("payload", "snapshot", name, "sha256")
		if !ok {
			continue
		}
		if s, ok := v.AsString(); ok {
			out[name+".sha256"] = s
		}
	}
	return out
}
