//go:build go1.18

// Fuzzing tests for sealcheck canonicalization and verification
//
// These targets feed randomized input through the parser, canonicalizer and
// verifier. They check for panics and for the properties every digest
// depends on: a canonical form is stable, re-canonicalizes to itself and
// survives a seal/verify round trip.
//
// Running fuzz tests:
//   go test -fuzz=FuzzCanonicalIdempotent -fuzztime=30s ./test/fuzz/...
//   go test -fuzz=. -fuzztime=1m ./test/fuzz/...

package fuzz

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/internal/seal"
	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

func seedJSON(f *testing.F) {
	f.Add(`{}`)
	f.Add(`[]`)
	f.Add(`null`)
	f.Add(`{"a":1,"b":{"d":4,"c":3}}`)
	f.Add(`{"numbers":[0,-0,1.0,1e21,1e-7,123456789012345678901234567890]}`)
	f.Add(`{"s":"\u0000\u001f\"\\\/\b\f\n\r\t"}`)
	f.Add(`{"😀":1,"！":2,"é":3,"é":4}`)
	f.Add(`{"a":1,"a":2}`) // duplicate key
	f.Add(`"\ud800"`)      // lone surrogate
	f.Add(`[1,2`)          // truncated
	f.Add(`{"canonicalHash":"abc","payload":{"caseId":"C-1"}}`)
	f.Add("\xff\xfe")
}

// FuzzParse ensures Parse never panics and only fails with a classified error.
func FuzzParse(f *testing.F) {
	seedJSON(f)

	f.Fuzz(func(t *testing.T, input string) {
		_, err := jsonutil.Parse([]byte(input))
		if err != nil && !errors.Is(err, errclass.ErrMalformedInput) {
			t.Errorf("unclassified parse error for %q: %v", input, err)
		}
	})
}

// FuzzCanonicalIdempotent checks that the canonical form is a fixed point
// and that it is still valid JSON to encoding/json.
func FuzzCanonicalIdempotent(f *testing.F) {
	seedJSON(f)

	f.Fuzz(func(t *testing.T, input string) {
		v, err := jsonutil.Parse([]byte(input))
		if err != nil {
			return
		}
		first, err := jsonutil.Canonicalize(v)
		if err != nil {
			// Only out-of-range numbers are rejected after a successful parse.
			if !errors.Is(err, errclass.ErrMalformedInput) {
				t.Fatalf("unexpected canonicalize error: %v", err)
			}
			return
		}
		if !json.Valid([]byte(first)) {
			t.Fatalf("canonical form is not valid JSON: %q", first)
		}

		again, err := jsonutil.Parse([]byte(first))
		if err != nil {
			t.Fatalf("canonical form does not reparse: %q: %v", first, err)
		}
		second, err := jsonutil.Canonicalize(again)
		if err != nil {
			t.Fatalf("canonical form does not re-canonicalize: %v", err)
		}
		if first != second {
			t.Errorf("not idempotent:\n  first:  %q\n  second: %q", first, second)
		}
		if strings.ContainsAny(first, "\n\t") {
			t.Errorf("canonical form contains raw whitespace: %q", first)
		}
	})
}

// FuzzCanonicalMarshalMap ensures map canonicalization is deterministic.
func FuzzCanonicalMarshalMap(f *testing.F) {
	f.Add("key", "value", int64(42))
	f.Add("", "", int64(0))
	f.Add("é", " ", int64(-1))
	f.Add("a\x00b", "\x7f", int64(9007199254740993))

	f.Fuzz(func(t *testing.T, key, value string, n int64) {
		m := map[string]any{key: value, key + "_n": n, "z": []any{value, n}}
		a, errA := jsonutil.CanonicalMarshal(m)
		b, errB := jsonutil.CanonicalMarshal(m)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("inconsistent errors: %v vs %v", errA, errB)
		}
		if string(a) != string(b) {
			t.Errorf("non-deterministic output: %q vs %q", a, b)
		}
	})
}

// FuzzSealVerifyRoundTrip checks that any sealed object verifies, and that
// changing one field makes it fail.
func FuzzSealVerifyRoundTrip(f *testing.F) {
	f.Add(`{"a":1}`, "x")
	f.Add(`{"eventKey":"k","payload":{"score":0.875}}`, "tamper")
	f.Add(`{"canonicalHash":"old","n":1e400}`, "")

	v, err := verify.NewVerifier(verify.WithLogger(logging.Discard()))
	if err != nil {
		f.Fatal(err)
	}
	sealer := seal.New(v)

	f.Fuzz(func(t *testing.T, input, extra string) {
		val, err := jsonutil.Parse([]byte(input))
		if err != nil || val.Kind() != jsonutil.KindObject {
			return
		}
		if _, ok := val.Get("__fuzz_extra"); ok {
			return
		}
		sealed, _, err := sealer.SealValue(val)
		if err != nil {
			return
		}
		res, err := v.Verify(sealed)
		if err != nil {
			t.Fatalf("sealed record did not verify: %v", err)
		}
		if res.Status != model.StatusPass {
			t.Fatalf("sealed record status %s", res.Status)
		}

		tampered := sealed.With("__fuzz_extra", jsonutil.String(extra))
		res, err = v.Verify(tampered)
		if err != nil {
			t.Fatalf("tampered record did not verify: %v", err)
		}
		if res.Status != model.StatusFail {
			t.Errorf("added field went undetected")
		}
	})
}

// FuzzNDJSONReader ensures the line reader never panics and numbers lines
// consistently.
func FuzzNDJSONReader(f *testing.F) {
	f.Add("{\"a\":1}\n\n{bad\n")
	f.Add("\xef\xbb\xbf{\"a\":1}")
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		entries, err := ndjson.ReadAll(strings.NewReader(input))
		if err != nil {
			return
		}
		last := 0
		for _, e := range entries {
			if e.Line <= last {
				t.Fatalf("line numbers not increasing: %d after %d", e.Line, last)
			}
			last = e.Line
			if (e.Err == nil) == (e.Record == nil) {
				t.Fatalf("entry must have exactly one of record and error")
			}
		}
	})
}
