// Package digest implements SIT's algorithm-agnostic streaming hasher and
// its textual encoding of digest bytes into filesystem-safe record names.
package digest

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// HashingAlgorithm selects the digest variant used for all record hashing
// within a repository. It is chosen at repository-init time, stored in
// config.json, and re-instantiated identically whenever the repository is
// opened again.
type HashingAlgorithm struct {
	// Kind is either "blake2b" or "sha1".
	Kind string
	// Size is the digest size in bytes. Only meaningful for blake2b.
	Size int
}

// DefaultHashingAlgorithm is BLAKE2b-160, matching the original
// implementation's default: fast, with no known practical attacks.
func DefaultHashingAlgorithm() HashingAlgorithm {
	return HashingAlgorithm{Kind: "blake2b", Size: 20}
}

// SHA1Algorithm is the legacy hashing variant, kept for repositories created
// before BLAKE2b support existed.
func SHA1Algorithm() HashingAlgorithm {
	return HashingAlgorithm{Kind: "sha1"}
}

// Hasher is a streaming sink producing a byte digest.
type Hasher interface {
	// Update appends data to the hashed stream.
	Update(p []byte)
	// Finalize returns the digest. Finalize may only be called once.
	Finalize() Digest
}

type stdHasher struct {
	h hash.Hash
}

func (s *stdHasher) Update(p []byte)   { s.h.Write(p) }
func (s *stdHasher) Finalize() Digest { return Digest(s.h.Sum(nil)) }

// NewHasher returns a fresh Hasher for the algorithm.
func (a HashingAlgorithm) NewHasher() (Hasher, error) {
	switch a.Kind {
	case "blake2b":
		size := a.Size
		if size == 0 {
			size = 20
		}
		h, err := blake2b.New(size, nil)
		if err != nil {
			return nil, fmt.Errorf("digest: constructing blake2b-%d hasher: %w", size*8, err)
		}
		return &stdHasher{h: h}, nil
	case "sha1":
		return &stdHasher{h: sha1.New()}, nil
	default:
		return nil, fmt.Errorf("digest: unknown hashing algorithm %q", a.Kind)
	}
}

// jsonBlake2b mirrors the on-disk `{"blake2b":{"size":20}}` shape.
type jsonBlake2b struct {
	Blake2b *struct {
		Size int `json:"size"`
	} `json:"blake2b,omitempty"`
}

// MarshalJSON encodes the algorithm the way config.json expects it:
// `{"blake2b":{"size":20}}` or the bare string `"sha1"`.
func (a HashingAlgorithm) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case "blake2b":
		size := a.Size
		if size == 0 {
			size = 20
		}
		return json.Marshal(jsonBlake2b{Blake2b: &struct {
			Size int `json:"size"`
		}{Size: size}})
	case "sha1":
		return json.Marshal("sha1")
	default:
		return nil, fmt.Errorf("digest: unknown hashing algorithm %q", a.Kind)
	}
}

// UnmarshalJSON accepts either representation.
func (a *HashingAlgorithm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "sha1" {
			return fmt.Errorf("digest: unknown hashing algorithm %q", s)
		}
		*a = HashingAlgorithm{Kind: "sha1"}
		return nil
	}
	var b jsonBlake2b
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("digest: decoding hashing_algorithm: %w", err)
	}
	if b.Blake2b == nil {
		return fmt.Errorf("digest: unrecognized hashing_algorithm shape")
	}
	size := b.Blake2b.Size
	if size == 0 {
		size = 20
	}
	*a = HashingAlgorithm{Kind: "blake2b", Size: size}
	return nil
}

// Digest is an opaque byte array produced by a HashingAlgorithm. It carries
// no algorithm tag of its own -- the repository's config fixes the
// algorithm for every digest it produces, unlike opencontainers/go-digest's
// self-describing `alg:hex` strings.
type Digest []byte

// Equal reports whether two digests are byte-identical.
func (d Digest) Equal(other Digest) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}
