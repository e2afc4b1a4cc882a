package ndjson_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qube-forensics/sealcheck/internal/ndjson"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll_SkipsBlankLinesAndKeepsLineNumbers(t *testing.T) {
	input := "{\"a\":1}\n\n   \n  {\"b\":2}  \r\n"
	entries, err := ndjson.ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Line)
	assert.Equal(t, 4, entries[1].Line)
	assert.Equal(t, 4, entries[1].Record.Line)
	assert.NoError(t, entries[0].Err)
}

func TestReadAll_MalformedLineIsIsolated(t *testing.T) {
	input := "{\"a\":1}\n{not json}\n[1,2]\n{\"c\":3}\n"
	entries, err := ndjson.ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.NoError(t, entries[0].Err)
	assert.True(t, errors.Is(entries[1].Err, errclass.ErrMalformedInput))
	assert.Contains(t, entries[1].Err.Error(), "line 2")
	assert.True(t, errors.Is(entries[2].Err, errclass.ErrMalformedInput), "arrays are not records")
	assert.NoError(t, entries[3].Err)
	assert.NotNil(t, entries[3].Record)
}

func TestReadAll_StripsBOM(t *testing.T) {
	entries, err := ndjson.ReadAll(strings.NewReader("\xef\xbb\xbf{\"a\":1}\n"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NoError(t, entries[0].Err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n{\"a\":2}\n"), 0644))

	entries, err := ndjson.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = ndjson.ReadFile(filepath.Join(t.TempDir(), "missing.ndjson"))
	assert.Error(t, err)
}

func TestFilterPayloadType(t *testing.T) {
	input := strings.Join([]string{
		`{"payloadType":"qube_forensic_report.v1","n":1}`,
		`{"payloadType":"other.v1","n":2}`,
		`broken`,
		`{"payloadType":"qube_forensic_report.v1","n":3}`,
	}, "\n")
	entries, err := ndjson.ReadAll(strings.NewReader(input))
	require.NoError(t, err)

	kept := ndjson.FilterPayloadType(entries, "qube_forensic_report.v1")
	require.Len(t, kept, 3)
	assert.Equal(t, 1, kept[0].Line)
	assert.Error(t, kept[1].Err)
	assert.Equal(t, 4, kept[2].Line)

	assert.Len(t, ndjson.FilterPayloadType(entries, ""), 4)
	assert.Len(t, entries, 4, "filtering must not modify the input")
}

func TestWriter_EmitsCanonicalLines(t *testing.T) {
	entries, err := ndjson.ReadAll(strings.NewReader("{ \"b\" : 2, \"a\" : [1, 2] }\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := ndjson.NewWriter(&buf)
	require.NoError(t, w.Write(entries[0].Record))
	require.NoError(t, w.Flush())
	assert.Equal(t, "{\"a\":[1,2],\"b\":2}\n", buf.String())

	v, err := jsonutil.Parse(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())
}
