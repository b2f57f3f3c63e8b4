package digest

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOCIFormBlake2b(t *testing.T) {
	algo := HashingAlgorithm{Kind: "blake2b", Size: 20}
	d := Digest{1, 2, 3, 4}

	got := d.OCIForm(algo)
	assert.Equal(t, "blake2b-160:"+hex.EncodeToString(d), got.String())
}

func TestOCIFormSHA1(t *testing.T) {
	algo := SHA1Algorithm()
	d := Digest{0xde, 0xad, 0xbe, 0xef}

	got := d.OCIForm(algo)
	assert.Equal(t, "sha1:deadbeef", got.String())
}
