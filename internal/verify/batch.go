package verify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/pkg/model"
	"github.com/qube-forensics/sealcheck/pkg/progress"
)

// Outcome is the verification outcome of one input entry. Exactly one of
// Result and Err is set.
type Outcome struct {
	Line   int           `json:"line"`
	Result *model.Result `json:"result,omitempty"`
	Err    error         `json:"-"`
	Error  string        `json:"error,omitempty"`
}

// Status returns the outcome's status, ERROR when it has no result.
func (o *Outcome) Status() model.Status {
	if o.Err != nil || o.Result == nil {
		return model.StatusError
	}
	return o.Result.Status
}

// Report summarizes a batch verification. Outcomes are in input order.
type Report struct {
	RunID    string     `json:"run_id"`
	Outcomes []*Outcome `json:"outcomes"`
	Passed   int        `json:"passed"`
	Failed   int        `json:"failed"`
	Errored  int        `json:"errored"`
}

// Tampered reports whether any record failed verification.
func (r *Report) Tampered() bool {
	return r.Failed > 0
}

// Err aggregates the per-record tooling errors, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return utilerrors.NewAggregate(errs)
}

// VerifyAll verifies records concurrently with at most workers in flight.
func (v *Verifier) VerifyAll(ctx context.Context, recs []*model.TelemetryRecord, workers int) *Report {
	entries := make([]ndjson.Entry, len(recs))
	for i, rec := range recs {
		entries[i] = ndjson.Entry{Record: rec}
		if rec != nil {
			entries[i].Line = rec.Line
		}
	}
	return v.VerifyEntries(ctx, entries, workers)
}

// VerifyEntries verifies parsed input entries. Entries that failed to parse
// are carried into the report as errors. A failure in one entry never
// affects another.
func (v *Verifier) VerifyEntries(ctx context.Context, entries []ndjson.Entry, workers int) *Report {
	if workers < 1 {
		workers = 1
	}
	report := &Report{
		RunID:    uuid.NewString(),
		Outcomes: make([]*Outcome, len(entries)),
	}

	ctx, span := v.tracer.Start(ctx, "verify.batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("sealcheck.run_id", report.RunID),
		attribute.Int("sealcheck.records", len(entries)),
	)

	prog := progress.New("verifying", len(entries), v.progress)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range entries {
		out := &Outcome{Line: entry.Line}
		report.Outcomes[i] = out
		if entry.Err != nil {
			out.Err = entry.Err
			prog.Increment("")
			continue
		}
		g.Go(func() error {
			defer prog.Increment("")
			if err := gctx.Err(); err != nil {
				out.Err = err
				return nil
			}
			out.Result, out.Err = v.VerifyContext(gctx, entry.Record)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range report.Outcomes {
		if out.Err != nil {
			out.Error = out.Err.Error()
		}
		switch out.Status() {
		case model.StatusPass:
			report.Passed++
		case model.StatusFail:
			report.Failed++
		default:
			report.Errored++
		}
	}
	span.SetAttributes(
		attribute.Int("sealcheck.passed", report.Passed),
		attribute.Int("sealcheck.failed", report.Failed),
		attribute.Int("sealcheck.errored", report.Errored),
	)
	if len(entries) > 0 {
		prog.Done(fmt.Sprintf("%d passed, %d failed, %d errored", report.Passed, report.Failed, report.Errored))
	}
	v.logger.Info("batch verification complete", map[string]any{
		"run_id":  report.RunID,
		"records": len(entries),
		"passed":  report.Passed,
		"failed":  report.Failed,
		"errored": report.Errored,
	})
	return report
}
