package sealcheck_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qube-forensics/sealcheck/pkg/digest"
	"github.com/qube-forensics/sealcheck/pkg/errclass"
	"github.com/qube-forensics/sealcheck/pkg/logging"
	"github.com/qube-forensics/sealcheck/pkg/sealcheck"
)

// sha256 of {"a":1,"b":{"c":3,"d":4}}
const sampleDigest = "8d463b4d44d84c3a5f01c287245d254181e5d88e0f520c14c325a33422ed9331"

func newClient(t *testing.T, opts sealcheck.Options) *sealcheck.Client {
	t.Helper()
	opts.Logger = logging.Discard()
	c, err := sealcheck.New(opts)
	require.NoError(t, err)
	return c
}

func TestCanonicalizeAndDigest(t *testing.T) {
	canonical, err := sealcheck.Canonicalize(map[string]any{
		"b": map[string]any{"d": 4, "c": 3},
		"a": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":{"c":3,"d":4}}`, canonical)
	assert.Equal(t, sampleDigest, sealcheck.DigestHex(canonical))
}

func TestCanonicalize_Cycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := sealcheck.Canonicalize(m)
	assert.True(t, errors.Is(err, errclass.ErrCyclicStructure))
}

func TestClient_Verify(t *testing.T) {
	c := newClient(t, sealcheck.Options{})
	assert.Equal(t, "canonicalHash", c.HashField())
	assert.Equal(t, digest.SHA256, c.Algorithm())

	res, err := c.Verify(context.Background(), map[string]any{
		"a": 1, "b": map[string]any{"c": 3, "d": 4}, "canonicalHash": sampleDigest,
	})
	require.NoError(t, err)
	assert.Equal(t, sealcheck.StatusPass, res.Status)

	res, err = c.VerifyJSON(context.Background(), []byte(`{"a":2,"b":{"c":3,"d":4},"canonicalHash":"`+sampleDigest+`"}`))
	require.NoError(t, err)
	assert.Equal(t, sealcheck.StatusFail, res.Status)
}

func TestClient_VerifyStruct(t *testing.T) {
	type inner struct {
		D int `json:"d"`
		C int `json:"c"`
	}
	type event struct {
		B    inner  `json:"b"`
		A    int    `json:"a"`
		Hash string `json:"canonicalHash"`
	}
	c := newClient(t, sealcheck.Options{})
	res, err := c.Verify(context.Background(), event{B: inner{D: 4, C: 3}, A: 1, Hash: sampleDigest})
	require.NoError(t, err)
	assert.Equal(t, sealcheck.StatusPass, res.Status)
}

func TestClient_VerifyErrors(t *testing.T) {
	c := newClient(t, sealcheck.Options{})

	_, err := c.Verify(context.Background(), []any{1, 2})
	assert.True(t, errors.Is(err, errclass.ErrMalformedInput))

	_, err = c.VerifyJSON(context.Background(), []byte(`{"a":1`))
	assert.True(t, errors.Is(err, errclass.ErrMalformedInput))

	_, err = c.VerifyJSON(context.Background(), []byte(`{"a":1}`))
	assert.True(t, errors.Is(err, errclass.ErrMalformedInput))
}

func TestClient_Start(t *testing.T) {
	c := newClient(t, sealcheck.Options{})
	h, err := c.Start(context.Background(), map[string]any{"a": 1, "canonicalHash": "x"})
	require.NoError(t, err)

	res, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sealcheck.StatusFail, res.Status)
	assert.Equal(t, sealcheck.StatusFail, h.Status())
}

func TestClient_SealThenVerifyFile(t *testing.T) {
	c := newClient(t, sealcheck.Options{HashField: "seal", Algorithm: digest.BLAKE3, Workers: 2})

	first, sum, err := c.SealJSON([]byte(`{"eventKey":"e1","payload":{"v":[1,2]}}`))
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	assert.Contains(t, string(first), `"seal":"`+sum+`"`)

	second, _, err := c.SealJSON([]byte(`{"eventKey":"e2"}`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sealed.ndjson")
	require.NoError(t, os.WriteFile(path, append(append(first, '\n'), append(second, '\n')...), 0644))

	report, err := c.VerifyFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)
	assert.False(t, report.Tampered())
	assert.NoError(t, report.Err())
}

func TestNew_InvalidAlgorithm(t *testing.T) {
	_, err := sealcheck.New(sealcheck.Options{Algorithm: "crc32"})
	assert.Error(t, err)
}
