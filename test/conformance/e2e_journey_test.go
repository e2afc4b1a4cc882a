//go:build conformance

package conformance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rawEvents = []string{
	`{"eventKey":"evt-001","payloadType":"qube_forensic_report.v1","timestamp":"2026-03-01T10:00:00Z","sealPhrase":"Canonical truth, attested and replayable.","lineage":{"caseId":"CASE-7"},"payload":{"embeddingDimension":1536,"score":0.875,"governance":{"sealPhrase":"Canonical truth, attested and replayable."}}}`,
	`{"eventKey":"evt-002","payloadType":"qube_forensic_report.v1","timestamp":"2026-03-01T10:00:05Z","sealPhrase":"Canonical truth, attested and replayable.","lineage":{"caseId":"CASE-7"},"payload":{"embeddingDimension":1536,"score":0.5,"governance":{"sealPhrase":"Canonical truth, attested and replayable."}}}`,
	`{"eventKey":"evt-003","payloadType":"qube_heartbeat.v1","timestamp":"2026-03-01T10:00:06Z"}`,
}

// TestJourney_SealVerifyTamper covers the life of an evidence file: it is
// sealed at ingest, verified later, then a single byte is edited.
func TestJourney_SealVerifyTamper(t *testing.T) {
	dir := t.TempDir()
	writeNDJSON(t, dir, "raw.ndjson", rawEvents...)
	sealed := sealFile(t, dir, "raw.ndjson", "sealed.ndjson")
	require.Len(t, sealed, 3)
	for _, line := range sealed {
		assert.Contains(t, line, `"canonicalHash":"`)
	}

	stdout, _, code := runSealcheck(t, dir, "", "verify", "sealed.ndjson")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "3 passed, 0 failed, 0 errors")

	tampered := append([]string(nil), sealed...)
	tampered[1] = strings.Replace(tampered[1], `"score":0.5`, `"score":0.51`, 1)
	writeNDJSON(t, dir, "tampered.ndjson", tampered...)

	stdout, _, code = runSealcheck(t, dir, "", "verify", "tampered.ndjson")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "FAIL")
	assert.Contains(t, stdout, "evt-002")
	assert.Contains(t, stdout, "2 passed, 1 failed, 0 errors")
}

func TestJourney_VerifyJSONReport(t *testing.T) {
	dir := t.TempDir()
	writeNDJSON(t, dir, "raw.ndjson", rawEvents...)
	sealFile(t, dir, "raw.ndjson", "sealed.ndjson")

	stdout, _, code := runSealcheck(t, dir, "", "--json", "verify", "--payload-type", "qube_forensic_report.v1", "sealed.ndjson")
	require.Equal(t, 0, code)

	var report struct {
		RunID    string `json:"run_id"`
		Passed   int    `json:"passed"`
		Outcomes []struct {
			Line   int `json:"line"`
			Result struct {
				Status   string `json:"status"`
				EventKey string `json:"event_key"`
				CaseID   string `json:"case_id"`
			} `json:"result"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Passed)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "PASS", report.Outcomes[0].Result.Status)
	assert.Equal(t, "CASE-7", report.Outcomes[0].Result.CaseID)
	assert.Equal(t, "evt-002", report.Outcomes[1].Result.EventKey)
}

func TestJourney_StdinPipeline(t *testing.T) {
	dir := t.TempDir()
	sealed, _, code := runSealcheck(t, dir, strings.Join(rawEvents, "\n")+"\n", "seal", "-")
	require.Equal(t, 0, code)

	stdout, _, code := runSealcheck(t, dir, sealed, "verify", "-")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "3 passed")
}

func TestJourney_Blake3CustomField(t *testing.T) {
	dir := t.TempDir()
	writeNDJSON(t, dir, "raw.ndjson", rawEvents...)
	sealed := sealFile(t, dir, "raw.ndjson", "sealed.ndjson", "--algorithm", "blake3", "--hash-field", "seal")
	assert.Contains(t, sealed[0], `"seal":"`)
	assert.NotContains(t, sealed[0], "canonicalHash")

	_, _, code := runSealcheck(t, dir, "", "verify", "--algorithm", "blake3", "--hash-field", "seal", "sealed.ndjson")
	assert.Equal(t, 0, code)

	// Same file under the default algorithm is a FAIL, not an error.
	stdout, _, code := runSealcheck(t, dir, "", "verify", "--hash-field", "seal", "sealed.ndjson")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "0 passed, 3 failed")
}

func TestJourney_AuditChain(t *testing.T) {
	dir := t.TempDir()
	writeNDJSON(t, dir, "raw.ndjson", rawEvents...)
	sealFile(t, dir, "raw.ndjson", "sealed.ndjson")

	for i := 0; i < 2; i++ {
		_, _, code := runSealcheck(t, dir, "", "verify", "--audit-log", "verdicts.jsonl", "sealed.ndjson")
		require.Equal(t, 0, code)
	}

	stdout, _, code := runSealcheck(t, dir, "", "audit", "verify", "verdicts.jsonl")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "chain intact: 6 entries")

	data, err := os.ReadFile(filepath.Join(dir, "verdicts.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	lines = append(lines[:2], lines[3:]...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verdicts.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0644))

	_, stderr, code := runSealcheck(t, dir, "", "audit", "verify", "verdicts.jsonl")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "line 3")
}

func TestJourney_MetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	writeNDJSON(t, dir, "raw.ndjson", rawEvents...)
	sealFile(t, dir, "raw.ndjson", "sealed.ndjson")

	_, _, code := runSealcheck(t, dir, "", "verify", "--metrics-file", "sealcheck.prom", "sealed.ndjson")
	require.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(dir, "sealcheck.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sealcheck_")
}
