// Package doctor inspects telemetry files for records that cannot verify or
// that different producers would canonicalize differently.
package doctor

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Line        int    `json:"line,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Records  int       `json:"records"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "error" || f.Severity == "critical" {
		r.Healthy = false
	}
}

// maxSafeInteger is 2^53, the largest integer every binary64 consumer keeps
// exactly.
var maxSafeInteger = new(big.Int).Lsh(big.NewInt(1), 53)

// Doctor performs telemetry file health checks.
type Doctor struct {
	verifier    *verify.Verifier
	payloadType string
}

// NewDoctor creates a new doctor. When payloadType is set, records of any
// other payload type are reported.
func NewDoctor(v *verify.Verifier, payloadType string) *Doctor {
	return &Doctor{verifier: v, payloadType: payloadType}
}

// Check runs all diagnostic checks. In strict mode every record is also
// verified and a failing record is critical.
func (d *Doctor) Check(ctx context.Context, entries []ndjson.Entry, strict bool) *Result {
	result := &Result{Healthy: true, Findings: []Finding{}}
	seen := sets.New[string]()
	reported := sets.New[string]()

	for _, entry := range entries {
		if entry.Err != nil {
			result.add(Finding{
				Category:    "parse",
				Description: entry.Err.Error(),
				Severity:    "critical",
				Line:        entry.Line,
			})
			continue
		}
		result.Records++
		rec := entry.Record

		d.checkHashField(result, rec, seen, reported)
		d.checkPayloadType(result, rec)
		checkForensicReport(result, rec)
		checkValue(result, rec.Line, "$", rec.Without(d.verifier.HashField()).Value())
	}

	if strict {
		d.checkIntegrity(ctx, result, entries)
	}
	return result
}

func (d *Doctor) checkHashField(result *Result, rec *model.TelemetryRecord, seen, reported sets.Set[string]) {
	declared, err := d.verifier.DeclaredHash(rec)
	if err != nil {
		result.add(Finding{
			Category:    "hash",
			Description: err.Error(),
			Severity:    "error",
			Line:        rec.Line,
			Path:        "$." + d.verifier.HashField(),
		})
		return
	}

	h := string(declared)
	// Comparison is exact, so either problem means the record can never pass.
	if want := d.verifier.Algorithm().HexLen(); len(h) != want {
		result.add(Finding{
			Category:    "hash",
			Description: fmt.Sprintf("declared hash has %d characters, %s digests have %d", len(h), d.verifier.Algorithm(), want),
			Severity:    "error",
			Line:        rec.Line,
			Path:        "$." + d.verifier.HashField(),
		})
	}
	if !isLowerHex(h) {
		result.add(Finding{
			Category:    "hash",
			Description: "declared hash is not lowercase hex",
			Severity:    "error",
			Line:        rec.Line,
			Path:        "$." + d.verifier.HashField(),
		})
	}

	if seen.Has(h) && !reported.Has(h) {
		reported.Insert(h)
		result.add(Finding{
			Category:    "hash",
			Description: fmt.Sprintf("declared hash %s appears on more than one record", declared.ShortHash()),
			Severity:    "warning",
			Line:        rec.Line,
		})
	}
	seen.Insert(h)
}

func (d *Doctor) checkPayloadType(result *Result, rec *model.TelemetryRecord) {
	if d.payloadType == "" {
		return
	}
	if pt := rec.PayloadType(); pt != d.payloadType {
		result.add(Finding{
			Category:    "payload",
			Description: fmt.Sprintf("payloadType %q, expected %q", pt, d.payloadType),
			Severity:    "info",
			Line:        rec.Line,
			Path:        "$.payloadType",
		})
	}
}

// checkForensicReport applies the ingest rules of forensic report events.
// A record that breaks them may still verify, but was never admitted by the
// sealing pipeline.
func checkForensicReport(result *Result, rec *model.TelemetryRecord) {
	if rec.PayloadType() != model.PayloadTypeForensicV1 {
		return
	}
	root := rec.Value()

	phrase := func(path string, keys ...string) {
		v, ok := root.Path(keys...)
		if s, isString := v.AsString(); ok && isString && s == model.SealPhrase {
			return
		}
		result.add(Finding{
			Category:    "governance",
			Description: fmt.Sprintf("sealPhrase is not %q", model.SealPhrase),
			Severity:    "warning",
			Line:        rec.Line,
			Path:        path,
		})
	}
	phrase("$.sealPhrase", "sealPhrase")
	phrase("$.payload.governance.sealPhrase", "payload", "governance", "sealPhrase")

	dim, ok := root.Path("payload", "embeddingDimension")
	if ok {
		if f, err := dim.Float64(); err == nil && f == model.EmbeddingDimension {
			return
		}
	}
	result.add(Finding{
		Category:    "governance",
		Description: fmt.Sprintf("embeddingDimension is not %d", model.EmbeddingDimension),
		Severity:    "warning",
		Line:        rec.Line,
		Path:        "$.payload.embeddingDimension",
	})
}

func checkValue(result *Result, line int, path string, v jsonutil.Value) {
	switch v.Kind() {
	case jsonutil.KindString:
		s, _ := v.AsString()
		if !norm.NFC.IsNormalString(s) {
			result.add(Finding{
				Category:    "unicode",
				Description: "string is not NFC-normalized; producers that normalize will disagree",
				Severity:    "warning",
				Line:        line,
				Path:        path,
			})
		}
	case jsonutil.KindNumber:
		checkNumber(result, line, path, v)
	case jsonutil.KindArray:
		for i, item := range v.Items() {
			checkValue(result, line, fmt.Sprintf("%s[%d]", path, i), item)
		}
	case jsonutil.KindObject:
		members := v.Members()
		for _, k := range slices.Sorted(maps.Keys(members)) {
			if !norm.NFC.IsNormalString(k) {
				result.add(Finding{
					Category:    "unicode",
					Description: fmt.Sprintf("key %q is not NFC-normalized", k),
					Severity:    "warning",
					Line:        line,
					Path:        path,
				})
			}
			checkValue(result, line, path+"."+k, members[k])
		}
	}
}

func checkNumber(result *Result, line int, path string, v jsonutil.Value) {
	lit, _ := v.AsNumber()
	if !strings.ContainsAny(lit, ".eE") {
		n, ok := new(big.Int).SetString(lit, 10)
		if ok && n.CmpAbs(maxSafeInteger) > 0 {
			result.add(Finding{
				Category:    "precision",
				Description: fmt.Sprintf("integer %s exceeds 2^53; binary64 consumers will round it", lit),
				Severity:    "warning",
				Line:        line,
				Path:        path,
			})
		}
		return
	}

	canonical, err := jsonutil.Canonicalize(v)
	if err != nil {
		result.add(Finding{
			Category:    "precision",
			Description: err.Error(),
			Severity:    "error",
			Line:        line,
			Path:        path,
		})
		return
	}
	if canonical != lit {
		result.add(Finding{
			Category:    "precision",
			Description: fmt.Sprintf("number %s canonicalizes to %s; producers that keep the literal will disagree", lit, canonical),
			Severity:    "info",
			Line:        line,
			Path:        path,
		})
	}
}

func (d *Doctor) checkIntegrity(ctx context.Context, result *Result, entries []ndjson.Entry) {
	var parsed []ndjson.Entry
	for _, e := range entries {
		if e.Err == nil {
			parsed = append(parsed, e)
		}
	}
	report := d.verifier.VerifyEntries(ctx, parsed, 1)
	for _, out := range report.Outcomes {
		if out.Status() == model.StatusFail {
			result.add(Finding{
				Category: "integrity",
				Description: fmt.Sprintf("declared hash %s does not match computed %s",
					out.Result.DeclaredHash.ShortHash(), out.Result.ComputedDigest.ShortHash()),
				Severity: "critical",
				Line:     out.Line,
			})
		}
	}
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
