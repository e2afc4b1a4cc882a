// Package seal embeds a declared hash into telemetry records.
//
// Sealing is the inverse of verification: the record minus its hash field is
// canonicalized and hashed, and the digest is stored under the hash field. An
// existing declared hash is replaced, never included in the input.
package seal

import (
	"fmt"

	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// Sealer seals records with the hash field and algorithm of its verifier, so
// that everything it seals verifies with the same verifier.
type Sealer struct {
	v *verify.Verifier
}

// New creates a Sealer.
func New(v *verify.Verifier) *Sealer {
	return &Sealer{v: v}
}

// Seal returns a sealed copy of rec and the digest stored in it.
func (s *Sealer) Seal(rec *model.TelemetryRecord) (*model.TelemetryRecord, model.HashValue, error) {
	if rec == nil {
		return nil, "", fmt.Errorf("seal: %w", errclass.ErrMalformedInput.WithMessage("nil record"))
	}
	sum, err := s.v.ComputeDigest(rec)
	if err != nil {
		return nil, "", fmt.Errorf("seal line %d: %w", rec.Line, err)
	}
	return rec.With(s.v.HashField(), jsonutil.String(string(sum))), sum, nil
}

// SealValue seals an arbitrary object value, e.g. a freshly built event.
func (s *Sealer) SealValue(v jsonutil.Value) (*model.TelemetryRecord, model.HashValue, error) {
	rec, ok := model.NewRecord(v, 0)
	if !ok {
		return nil, "", fmt.Errorf("seal: value is %s, not object", v.Kind())
	}
	return s.Seal(rec)
}
