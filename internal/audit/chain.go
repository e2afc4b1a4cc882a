package audit

import (
	"fmt"
	"os"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// ChainReport summarizes a successful chain check.
type ChainReport struct {
	Records  int             `json:"records"`
	LastHash model.HashValue `json:"last_hash"`
}

// VerifyChain checks every entry of the log at path: each record hash must
// match the entry's content and each prev_hash must equal the record hash
// before it. The first broken link is reported as ErrAuditChainBroken.
func VerifyChain(path string) (*ChainReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	v, err := chainVerifier()
	if err != nil {
		return nil, err
	}

	report := &ChainReport{}
	r := ndjson.NewReader(f)
	for {
		entry, ok := r.Next()
		if !ok {
			break
		}
		if entry.Err != nil {
			return nil, errclass.ErrAuditChainBroken.WithMessagef("%v", entry.Err)
		}

		res, err := v.Verify(entry.Record)
		if err != nil {
			return nil, errclass.ErrAuditChainBroken.WithMessagef("line %d: %v", entry.Line, err)
		}
		if res.Status != model.StatusPass {
			return nil, errclass.ErrAuditChainBroken.WithMessagef(
				"line %d: record_hash %s does not match content (%s)",
				entry.Line, res.DeclaredHash.ShortHash(), res.ComputedDigest.ShortHash())
		}

		prev, _ := entry.Record.StringField("prev_hash")
		if model.HashValue(prev) != report.LastHash {
			return nil, errclass.ErrAuditChainBroken.WithMessagef(
				"line %d: prev_hash %q does not link to %q",
				entry.Line, model.HashValue(prev).ShortHash(), report.LastHash.ShortHash())
		}

		report.Records++
		report.LastHash = res.DeclaredHash
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return report, nil
}
