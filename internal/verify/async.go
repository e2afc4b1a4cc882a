package verify

import (
	"context"

	"github.com/qube-forensics/sealcheck/pkg/model"
)

// Verification is an in-flight verification of one record. Its status is
// PENDING until the computation finishes, then exactly one terminal status
// that never changes again.
type Verification struct {
	done   chan struct{}
	result *model.Result
	err    error
}

// Start begins verifying rec in the background. Cancelling ctx does not stop
// the computation; it only ends any Wait using that context.
func (v *Verifier) Start(ctx context.Context, rec *model.TelemetryRecord) *Verification {
	h := &Verification{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.err = v.VerifyContext(context.WithoutCancel(ctx), rec)
	}()
	return h
}

// Status returns PENDING, PASS, FAIL, or ERROR when the digest could not be
// computed.
func (h *Verification) Status() model.Status {
	select {
	case <-h.done:
		if h.err != nil {
			return model.StatusError
		}
		return h.result.Status
	default:
		return model.StatusPending
	}
}

// Done is closed when the verification has finished.
func (h *Verification) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the verification finishes or ctx ends. Abandoning a
// wait leaves the verification running; a later Wait still sees its result.
func (h *Verification) Wait(ctx context.Context) (*model.Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
