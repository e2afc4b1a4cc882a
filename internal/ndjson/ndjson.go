// Package ndjson reads and writes newline-delimited telemetry records.
package ndjson

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/qube-forensics/sealcheck/pkg/model"
)

// MaxLineBytes bounds a single record line.
const MaxLineBytes = 64 << 20

var bom = []byte("\xef\xbb\xbf")

// Entry is one non-blank input line: either a record or the reason it could
// not be parsed.
type Entry struct {
	Line   int
	Record *model.TelemetryRecord
	Err    error
}

// Reader yields entries from an NDJSON stream. A malformed line produces an
// Entry with Err set and does not stop the stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next entry, skipping blank lines. ok is false at end of
// input or on an I/O error; check Err.
func (r *Reader) Next() (entry Entry, ok bool) {
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if r.line == 1 {
			raw = bytes.TrimPrefix(raw, bom)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		return parseLine(raw, r.line), true
	}
	return Entry{}, false
}

// Err returns the first I/O error encountered.
func (r *Reader) Err() error {
	if err := r.sc.Err(); err != nil {
		return fmt.Errorf("read ndjson after line %d: %w", r.line, err)
	}
	return nil
}

func parseLine(raw []byte, line int) Entry {
	v, err := jsonutil.Parse(raw)
	if err != nil {
		return Entry{Line: line, Err: fmt.Errorf("line %d: %w", line, err)}
	}
	rec, ok := model.NewRecord(v, line)
	if !ok {
		return Entry{Line: line, Err: fmt.Errorf("line %d: %w", line,
			errclass.ErrMalformedInput.WithMessagef("record is %s, not object", v.Kind()))}
	}
	return Entry{Line: line, Record: rec}
}

// ReadAll reads every entry from r.
func ReadAll(r io.Reader) ([]Entry, error) {
	rd := NewReader(r)
	var entries []Entry
	for {
		e, ok := rd.Next()
		if !ok {
			break
		}
		entries = append(entries, e)
	}
	return entries, rd.Err()
}

// ReadFile reads every entry from the file at path; "-" reads stdin.
func ReadFile(path string) ([]Entry, error) {
	if path == "-" {
		return ReadAll(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadAll(f)
}

// FilterPayloadType keeps records whose payloadType equals payloadType.
// Unparseable entries are kept so that they are still reported. An empty
// payloadType keeps everything.
func FilterPayloadType(entries []Entry, payloadType string) []Entry {
	if payloadType == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Err != nil || e.Record.PayloadType() == payloadType {
			out = append(out, e)
		}
	}
	return out
}

// Writer emits records as canonical NDJSON lines.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits rec as one canonical line.
func (w *Writer) Write(rec *model.TelemetryRecord) error {
	line, err := jsonutil.Canonicalize(rec.Value())
	if err != nil {
		return fmt.Errorf("line %d: %w", rec.Line, err)
	}
	if _, err := w.w.WriteString(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}
