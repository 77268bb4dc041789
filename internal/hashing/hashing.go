// Package hashing computes the content fingerprints used to detect edits
// independently of where a module or test suite lives.
package hashing

import (
	"crypto/sha1" //nolint:gosec // change detection, not a security primitive
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA1    Algorithm = "sha1"
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
)

// Default matches the digest older snapshots were written with.
const Default = SHA1

// Algorithms lists every supported digest.
func Algorithms() []Algorithm {
	return []Algorithm{SHA1, SHA256, BLAKE2b}
}

// ParseAlgorithm resolves a config value; empty means Default.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Default, nil
	case SHA1, "sha-1":
		return SHA1, nil
	case SHA256, "sha-256":
		return SHA256, nil
	case BLAKE2b, "blake2b-256":
		return BLAKE2b, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", s)
	}
}

// Hasher produces hex-encoded digests. The zero value uses Default.
type Hasher struct {
	alg Algorithm
}

// New returns a Hasher for alg.
func New(alg Algorithm) (Hasher, error) {
	if _, err := newHash(alg); err != nil {
		return Hasher{}, err
	}
	return Hasher{alg: alg}, nil
}

// Algorithm reports the digest in use.
func (h Hasher) Algorithm() Algorithm {
	if h.alg == "" {
		return Default
	}
	return h.alg
}

// Sum hashes content.
func (h Hasher) Sum(content []byte) string {
	d, _ := newHash(h.Algorithm())
	d.Write(content) //nolint:errcheck // hash.Hash writes never fail
	return hex.EncodeToString(d.Sum(nil))
}

// SumString hashes a string.
func (h Hasher) SumString(s string) string {
	return h.Sum([]byte(s))
}

// SumReader hashes everything read from r.
func (h Hasher) SumReader(r io.Reader) (string, error) {
	d, _ := newHash(h.Algorithm())
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// SumFile hashes the file at path.
func (h Hasher) SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only

	return h.SumReader(f)
}

// Sum hashes content with Default.
func Sum(content []byte) string {
	return Hasher{}.Sum(content)
}

func newHash(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case SHA1, "":
		return sha1.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", alg)
	}
}
