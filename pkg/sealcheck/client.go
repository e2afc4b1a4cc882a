package sealcheck

import (
	"context"
	"fmt"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/internal/seal"
	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// Re-exported types.
type (
	Result       = model.Result
	Status       = model.Status
	Verification = verify.Verification
	Report       = verify.Report
)

// Statuses.
const (
	StatusPending = model.StatusPending
	StatusPass    = model.StatusPass
	StatusFail    = model.StatusFail
	StatusError   = model.StatusError
)

// Options configures a Client. The zero value checks "canonicalHash" with
// SHA-256.
type Options struct {
	HashField string           // key holding the declared hash
	Algorithm digest.Algorithm // sha256 or blake3
	Workers   int              // batch concurrency; defaults to 4
	Logger    *logging.Logger  // defaults to the global logger
}

// Client verifies and seals telemetry records.
type Client struct {
	verifier *verify.Verifier
	sealer   *seal.Sealer
	workers  int
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	var vopts []verify.Option
	if opts.HashField != "" {
		vopts = append(vopts, verify.WithHashField(opts.HashField))
	}
	if opts.Algorithm != "" {
		vopts = append(vopts, verify.WithAlgorithm(opts.Algorithm))
	}
	if opts.Logger != nil {
		vopts = append(vopts, verify.WithLogger(opts.Logger))
	}
	v, err := verify.NewVerifier(vopts...)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 4
	}
	return &Client{verifier: v, sealer: seal.New(v), workers: workers}, nil
}

// Canonicalize returns the canonical JSON form of v. v may be a
// jsonutil.Value or anything encoding/json can marshal.
func Canonicalize(v any) (string, error) {
	val, err := jsonutil.FromAny(v)
	if err != nil {
		return "", err
	}
	return jsonutil.Canonicalize(val)
}

// DigestHex returns the lowercase hex SHA-256 of s.
func DigestHex(s string) string {
	return digest.SHA256Hex([]byte(s))
}

// HashField returns the key holding the declared hash.
func (c *Client) HashField() string { return c.verifier.HashField() }

// Algorithm returns the digest algorithm.
func (c *Client) Algorithm() digest.Algorithm { return c.verifier.Algorithm() }

func toRecord(v any) (*model.TelemetryRecord, error) {
	val, err := jsonutil.FromAny(v)
	if err != nil {
		return nil, err
	}
	rec, ok := model.NewRecord(val, 0)
	if !ok {
		return nil, errclass.ErrMalformedInput.WithMessagef("record is %s, not object", val.Kind())
	}
	return rec, nil
}

// Verify checks one record, given as a map, a struct or a jsonutil.Value.
func (c *Client) Verify(ctx context.Context, record any) (*Result, error) {
	rec, err := toRecord(record)
	if err != nil {
		return nil, err
	}
	return c.verifier.VerifyContext(ctx, rec)
}

// VerifyJSON checks one record given as JSON text.
func (c *Client) VerifyJSON(ctx context.Context, data []byte) (*Result, error) {
	val, err := jsonutil.Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Verify(ctx, val)
}

// Start begins verifying record in the background.
func (c *Client) Start(ctx context.Context, record any) (*Verification, error) {
	rec, err := toRecord(record)
	if err != nil {
		return nil, err
	}
	return c.verifier.Start(ctx, rec), nil
}

// VerifyFile checks every record of an NDJSON file; "-" reads stdin.
func (c *Client) VerifyFile(ctx context.Context, path string) (*Report, error) {
	entries, err := ndjson.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.verifier.VerifyEntries(ctx, entries, c.workers), nil
}

// SealJSON returns the canonical form of the record in data with the hash
// field set, and the digest stored in it.
func (c *Client) SealJSON(data []byte) ([]byte, string, error) {
	val, err := jsonutil.Parse(data)
	if err != nil {
		return nil, "", err
	}
	sealed, sum, err := c.sealer.SealValue(val)
	if err != nil {
		return nil, "", err
	}
	out, err := jsonutil.Canonicalize(sealed.Value())
	if err != nil {
		return nil, "", err
	}
	return []byte(out), string(sum), nil
}
