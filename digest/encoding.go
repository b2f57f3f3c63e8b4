package digest

import (
	"encoding/base32"
	"fmt"
)

// Encoding is a bijection between digest bytes and a textual alphabet whose
// characters are legal as a single filesystem path component on every
// supported platform. It is chosen at repository-init time and stored in
// config.json alongside the hashing algorithm.
type Encoding interface {
	// Name identifies the encoding in config.json ("base32" is the only
	// required variant).
	Name() string
	// Encode renders a digest as a directory-name-safe string.
	Encode(d Digest) string
	// Decode parses a string produced by Encode back into digest bytes.
	// DecodeError is returned for malformed input.
	Decode(s string) (Digest, error)
}

// base32Encoding implements RFC 4648 upper-case, no-padding Base32 -- the
// only encoding spec.md requires. There is no third-party RFC 4648 base32
// codec in the example pack (multiformats/go-multihash's "multibase" is a
// different, self-describing wire format with a leading code byte, not a
// drop-in fixed-alphabet directory-name encoder), so this wraps the
// standard library's encoding/base32 directly.
type base32Encoding struct {
	enc *base32.Encoding
}

// Base32 is the default (and currently only) required Encoding.
var Base32 Encoding = base32Encoding{enc: base32.StdEncoding.WithPadding(base32.NoPadding)}

func (base32Encoding) Name() string { return "base32" }

func (b base32Encoding) Encode(d Digest) string {
	return b.enc.EncodeToString([]byte(d))
}

func (b base32Encoding) Decode(s string) (Digest, error) {
	raw, err := b.enc.DecodeString(s)
	if err != nil {
		return nil, DecodeError{Input: s, Err: err}
	}
	return Digest(raw), nil
}

// DecodeError wraps a failure to decode an encoded digest string.
type DecodeError struct {
	Input string
	Err   error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("digest: cannot decode %q: %v", e.Input, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// EncodingByName resolves the "encoding" config.json key to an Encoding.
func EncodingByName(name string) (Encoding, error) {
	switch name {
	case "base32", "":
		return Base32, nil
	default:
		return nil, fmt.Errorf("digest: unknown encoding %q", name)
	}
}
