package digest

import (
	"encoding/hex"
	"fmt"

	godigest "github.com/opencontainers/go-digest"
)

// OCIAlgorithm returns the go-digest-style algorithm label for a: the name
// that would prefix a self-describing "alg:hex" digest string. SIT's own
// Digest stays algorithm-less (the repository config fixes the algorithm
// for every digest it produces), but external tooling built against
// opencontainers/go-digest expects the self-describing form, so this is
// exposed for interop rather than baked into Digest itself.
func (a HashingAlgorithm) OCIAlgorithm() godigest.Algorithm {
	switch a.Kind {
	case "blake2b":
		size := a.Size
		if size == 0 {
			size = 20
		}
		return godigest.Algorithm(fmt.Sprintf("blake2b-%d", size*8))
	case "sha1":
		return godigest.Algorithm("sha1")
	default:
		return godigest.Algorithm(a.Kind)
	}
}

// OCIForm renders d as a go-digest self-describing digest string
// ("alg:hex") under algo, for handing off to OCI-style tooling or logging
// a digest alongside the encoded record name.
func (d Digest) OCIForm(algo HashingAlgorithm) godigest.Digest {
	return godigest.NewDigestFromEncoded(algo.OCIAlgorithm(), hex.EncodeToString(d))
}
