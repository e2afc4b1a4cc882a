// Package audit keeps a hash-chained JSONL log of verification verdicts.
//
// Every entry carries the hash of the entry before it and its own hash,
// computed exactly like a telemetry record's declared hash with
// "record_hash" as the hash field. The log can therefore be checked with the
// same verifier it records results of.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qube-forensics/sealcheck/internal/verify"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// FileAppender appends audit records to a JSONL file with hash chain.
type FileAppender struct {
	path     string
	mu       sync.Mutex
	verifier *verify.Verifier
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) (*FileAppender, error) {
	v, err := chainVerifier()
	if err != nil {
		return nil, err
	}
	return &FileAppender{path: path, verifier: v}, nil
}

func chainVerifier() (*verify.Verifier, error) {
	return verify.NewVerifier(
		verify.WithHashField(model.AuditRecordHashField),
		verify.WithLogger(logging.Discard()),
	)
}

// Path returns the log file path.
func (a *FileAppender) Path() string { return a.path }

// Append chains rec onto the log. Timestamp is set when zero; PrevHash and
// RecordHash are always overwritten.
func (a *FileAppender) Append(rec *model.AuditRecord) error {
	return a.AppendAll([]*model.AuditRecord{rec})
}

// AppendAll chains recs onto the log in order. The log is locked, read and
// synced once for the whole batch.
func (a *FileAppender) AppendAll(recs []*model.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	now := time.Now().UTC()
	var buf bytes.Buffer
	for _, rec := range recs {
		if rec.Timestamp.IsZero() {
			rec.Timestamp = now
		}
		rec.PrevHash = prevHash
		rec.RecordHash = ""

		entry, err := toRecord(rec)
		if err != nil {
			return err
		}
		recordHash, err := a.verifier.ComputeDigest(entry)
		if err != nil {
			return fmt.Errorf("compute record hash: %w", err)
		}
		rec.RecordHash = recordHash

		line, err := jsonutil.CanonicalMarshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		prevHash = recordHash
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

func outcomeRecord(runID, source string, out *verify.Outcome) *model.AuditRecord {
	rec := &model.AuditRecord{
		RunID:     runID,
		EventType: model.EventTypeVerify,
		Source:    source,
		Line:      out.Line,
		Status:    out.Status(),
	}
	if out.Result != nil {
		rec.EventKey = out.Result.EventKey
		rec.DeclaredHash = out.Result.DeclaredHash
		rec.ComputedDigest = out.Result.ComputedDigest
	}
	if out.Err != nil {
		rec.EventType = model.EventTypeVerifyError
		rec.Error = out.Err.Error()
	}
	return rec
}

// AppendOutcome records one batch verification outcome.
func (a *FileAppender) AppendOutcome(runID, source string, out *verify.Outcome) error {
	return a.Append(outcomeRecord(runID, source, out))
}

// AppendReport records every outcome of a batch run in input order.
func (a *FileAppender) AppendReport(source string, report *verify.Report) error {
	recs := make([]*model.AuditRecord, len(report.Outcomes))
	for i, out := range report.Outcomes {
		recs[i] = outcomeRecord(report.RunID, source, out)
	}
	return a.AppendAll(recs)
}

// GetLastRecordHash returns the hash of the last record in the log.
func (a *FileAppender) GetLastRecordHash() (model.HashValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	return lastRecordHash(file)
}

// tailChunk is how much of the log lastRecordHash reads per step.
const tailChunk = 64 * 1024

// lastRecordHash reads the log backwards and returns the record_hash of the
// last line that decodes. Malformed lines are skipped.
func lastRecordHash(file *os.File) (model.HashValue, error) {
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat audit log: %w", err)
	}

	var partial []byte // head of a line that continues into the previous chunk
	for end := info.Size(); end > 0; {
		start := max(end-tailChunk, 0)
		n := int(end - start)
		chunk := make([]byte, n, n+len(partial))
		if _, err := file.ReadAt(chunk, start); err != nil && err != io.EOF {
			return "", fmt.Errorf("read audit log: %w", err)
		}
		chunk = append(chunk, partial...)
		end = start

		lines := bytes.Split(chunk, []byte{'\n'})
		first := 0
		partial = nil
		if start > 0 {
			partial = lines[0]
			first = 1
		}
		for i := len(lines) - 1; i >= first; i-- {
			line := bytes.TrimSpace(lines[i])
			if len(line) == 0 {
				continue
			}
			var record model.AuditRecord
			if err := json.Unmarshal(line, &record); err != nil {
				continue
			}
			return record.RecordHash, nil
		}
	}
	return "", nil
}

// toRecord converts an audit entry to the generic record form the verifier
// hashes.
func toRecord(rec *model.AuditRecord) (*model.TelemetryRecord, error) {
	data, err := jsonutil.CanonicalMarshal(rec)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	v, err := jsonutil.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reparse audit record: %w", err)
	}
	out, _ := model.NewRecord(v, rec.Line)
	return out, nil
}
