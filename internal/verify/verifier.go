// Package verify recomputes the canonical digest of telemetry records and
// compares it with the hash each record declares.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/metrics"
	"github.com/qube-forensics/sealcheck/pkg/model"
	"github.com/qube-forensics/sealcheck/pkg/progress"
)

const tracerName = "github.com/qube-forensics/sealcheck/internal/verify"

// Digester hashes canonical bytes. The call may block; it is the only
// suspension point in a verification.
type Digester interface {
	Algorithm() digest.Algorithm
	DigestHex(data []byte) (string, error)
}

// Verifier checks declared hashes of telemetry records. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	hashField string
	algorithm digest.Algorithm
	digester  Digester
	logger    *logging.Logger
	metrics   *metrics.Registry
	tracer    trace.Tracer
	progress  progress.Callback
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHashField sets the key holding the declared hash.
func WithHashField(name string) Option {
	return func(v *Verifier) { v.hashField = name }
}

// WithAlgorithm sets the digest algorithm the records were sealed with.
func WithAlgorithm(alg digest.Algorithm) Option {
	return func(v *Verifier) { v.algorithm = alg }
}

// WithDigester replaces the digest engine. It overrides WithAlgorithm.
func WithDigester(d Digester) Option {
	return func(v *Verifier) { v.digester = d }
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *logging.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// WithMetrics records verification metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(v *Verifier) { v.metrics = r }
}

// WithTracer sets the tracer; the global OpenTelemetry provider is used
// otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(v *Verifier) { v.tracer = t }
}

// WithProgress reports batch progress to cb, one update per input entry and
// a closing summary once a non-empty batch completes.
func WithProgress(cb progress.Callback) Option {
	return func(v *Verifier) { v.progress = cb }
}

// NewVerifier creates a verifier. Without options it checks the
// "canonicalHash" field with SHA-256.
func NewVerifier(opts ...Option) (*Verifier, error) {
	v := &Verifier{
		hashField: model.DefaultHashField,
		algorithm: digest.Default,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.hashField == "" {
		return nil, errclass.ErrConfigInvalid.WithMessage("hash field name must not be empty")
	}
	if v.digester == nil {
		engine, err := digest.NewEngine(v.algorithm)
		if err != nil {
			return nil, err
		}
		v.digester = engine
	}
	v.algorithm = v.digester.Algorithm()
	if v.logger == nil {
		v.logger = logging.Global()
	}
	if v.tracer == nil {
		v.tracer = otel.Tracer(tracerName)
	}
	return v, nil
}

// HashField returns the key holding the declared hash.
func (v *Verifier) HashField() string { return v.hashField }

// Algorithm returns the digest algorithm.
func (v *Verifier) Algorithm() digest.Algorithm { return v.algorithm }

// Canonical returns the canonical form of rec with the hash field removed.
func (v *Verifier) Canonical(rec *model.TelemetryRecord) (string, error) {
	if rec == nil {
		return "", errclass.ErrMalformedInput.WithMessage("nil record")
	}
	canonical, err := jsonutil.Canonicalize(rec.Without(v.hashField).Value())
	if err != nil {
		return "", fmt.Errorf("%w: %w", errclass.ErrCanonicalization, err)
	}
	return canonical, nil
}

// ComputeDigest returns the digest of rec with the hash field removed,
// whether or not rec declares a hash.
func (v *Verifier) ComputeDigest(rec *model.TelemetryRecord) (model.HashValue, error) {
	h, _, err := v.computeDigest(rec)
	return h, err
}

func (v *Verifier) computeDigest(rec *model.TelemetryRecord) (model.HashValue, int, error) {
	canonical, err := v.Canonical(rec)
	if err != nil {
		return "", 0, err
	}
	sum, err := v.digester.DigestHex([]byte(canonical))
	if err != nil {
		if !errors.Is(err, errclass.ErrDigestComputation) {
			err = fmt.Errorf("%w: %w", errclass.ErrDigestComputation, err)
		}
		return "", len(canonical), err
	}
	return model.HashValue(sum), len(canonical), nil
}

// DeclaredHash returns the hash rec claims for itself.
func (v *Verifier) DeclaredHash(rec *model.TelemetryRecord) (model.HashValue, error) {
	if rec == nil {
		return "", errclass.ErrMalformedInput.WithMessage("nil record")
	}
	raw, ok := rec.Fields[v.hashField]
	if !ok {
		return "", errclass.ErrMalformedInput.WithMessagef("record has no %q field", v.hashField)
	}
	s, ok := raw.AsString()
	if !ok {
		return "", errclass.ErrMalformedInput.WithMessagef("field %q is %s, not string", v.hashField, raw.Kind())
	}
	return model.HashValue(s), nil
}

// Verify checks one record. A digest mismatch is reported as a FAIL result
// with a nil error; an error means the check could not be carried out.
func (v *Verifier) Verify(rec *model.TelemetryRecord) (*model.Result, error) {
	return v.VerifyContext(context.Background(), rec)
}

// VerifyContext is Verify with a tracing parent taken from ctx.
func (v *Verifier) VerifyContext(ctx context.Context, rec *model.TelemetryRecord) (*model.Result, error) {
	_, span := v.tracer.Start(ctx, "verify.record", trace.WithAttributes(
		attribute.String("sealcheck.hash_field", v.hashField),
		attribute.String("sealcheck.algorithm", string(v.algorithm)),
	))
	defer span.End()

	start := time.Now()
	result, size, err := v.verify(rec)
	if rec != nil {
		span.SetAttributes(attribute.Int("sealcheck.line", rec.Line))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if v.metrics != nil {
			v.metrics.RecordError(errclass.Code(err))
		}
		fields := map[string]any{"hash_field": v.hashField, "error": err.Error()}
		if rec != nil {
			fields["line"] = rec.Line
		}
		v.logger.Warn("record could not be verified", fields)
		return nil, err
	}

	span.SetAttributes(attribute.String("sealcheck.status", string(result.Status)))
	if v.metrics != nil {
		v.metrics.RecordVerification(result.Status, string(v.algorithm), time.Since(start), size)
	}
	fields := map[string]any{
		"line":     result.Line,
		"status":   string(result.Status),
		"computed": string(result.ComputedDigest),
	}
	if result.Status == model.StatusFail {
		fields["declared"] = string(result.DeclaredHash)
		v.logger.Warn("declared hash mismatch", fields)
	} else {
		v.logger.Debug("record verified", fields)
	}
	return result, nil
}

func (v *Verifier) verify(rec *model.TelemetryRecord) (*model.Result, int, error) {
	declared, err := v.DeclaredHash(rec)
	if err != nil {
		return nil, 0, err
	}
	computed, size, err := v.computeDigest(rec)
	if err != nil {
		return nil, size, err
	}

	result := &model.Result{
		Status:         model.StatusFail,
		ComputedDigest: computed,
		DeclaredHash:   declared,
		HashField:      v.hashField,
		Algorithm:      string(v.algorithm),
		Line:           rec.Line,
		EventKey:       rec.EventKey(),
		CaseID:         rec.CaseID(),
	}
	// Exact, case-sensitive comparison.
	if computed == declared {
		result.Status = model.StatusPass
	}
	return result, size, nil
}
