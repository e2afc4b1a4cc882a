// Package digest computes the content digest of canonical record bytes.
//
// The algorithm is part of the sealing contract: a record can only verify
// with the algorithm it was sealed with. SHA-256 is the pinned default.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/qube-forensics/sealcheck/pkg/errclass"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	// BLAKE3 is the 256-bit BLAKE3 hash, for stores sealed with it.
	BLAKE3 Algorithm = "blake3"
)

// Default is the algorithm used when none is configured.
const Default = SHA256

// Algorithms lists the supported algorithms.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, BLAKE3}
}

// ParseAlgorithm resolves a configured algorithm name. Matching is
// case-insensitive; the empty string selects Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return Default, nil
	case SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	}
	return "", errclass.ErrDigestComputation.WithMessagef("unsupported digest algorithm %q", name)
}

// HexLen returns the length of a hex digest produced by a.
func (a Algorithm) HexLen() int {
	switch a {
	case SHA256, BLAKE3:
		return 64
	}
	return 0
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, errclass.ErrDigestComputation.WithMessagef("unsupported digest algorithm %q", string(a))
}

// Engine computes hex digests with a fixed algorithm.
type Engine struct {
	alg Algorithm
}

// NewEngine returns an Engine for alg.
func NewEngine(alg Algorithm) (*Engine, error) {
	if _, err := alg.newHash(); err != nil {
		return nil, err
	}
	return &Engine{alg: alg}, nil
}

// Algorithm returns the engine's algorithm.
func (e *Engine) Algorithm() Algorithm { return e.alg }

// DigestHex hashes data and returns the lowercase hex digest.
func (e *Engine) DigestHex(data []byte) (string, error) {
	return Hex(e.alg, data)
}

// Hex hashes data with alg and returns the lowercase hex digest.
func Hex(alg Algorithm, data []byte) (string, error) {
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	if _, err := h.Write(data); err != nil {
		return "", errclass.ErrDigestComputation.WithMessagef("%s: %v", alg, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Hex is Hex(SHA256, data) for callers that cannot fail.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
