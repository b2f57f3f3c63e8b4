package digest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlake2bMatchesKnownVector(t *testing.T) {
	algo := DefaultHashingAlgorithm()
	h, err := algo.NewHasher()
	require.NoError(t, err)
	h.Update([]byte("test"))
	h.Update([]byte("that"))
	got := h.Finalize()
	want := Digest{239, 158, 188, 196, 86, 45, 99, 100, 46, 241, 60, 171, 231, 122, 51, 166, 153, 78, 173, 127}
	assert.True(t, got.Equal(want), "got %x want %x", got, want)
}

func TestSHA1MatchesKnownVector(t *testing.T) {
	algo := SHA1Algorithm()
	h, err := algo.NewHasher()
	require.NoError(t, err)
	h.Update([]byte("test"))
	h.Update([]byte("that"))
	got := h.Finalize()
	want := Digest{41, 72, 99, 35, 46, 48, 197, 88, 14, 233, 65, 11, 124, 53, 162, 198, 211, 182, 206, 179}
	assert.True(t, got.Equal(want), "got %x want %x", got, want)
}

func TestHashingAlgorithmJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		algo HashingAlgorithm
		json string
	}{
		{"blake2b", HashingAlgorithm{Kind: "blake2b", Size: 20}, `{"blake2b":{"size":20}}`},
		{"sha1", HashingAlgorithm{Kind: "sha1"}, `"sha1"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := json.Marshal(c.algo)
			require.NoError(t, err)
			assert.JSONEq(t, c.json, string(b))

			var decoded HashingAlgorithm
			require.NoError(t, json.Unmarshal(b, &decoded))
			assert.Equal(t, c.algo, decoded)
		})
	}
}

func TestBase32RoundTrip(t *testing.T) {
	algo := DefaultHashingAlgorithm()
	h, err := algo.NewHasher()
	require.NoError(t, err)
	h.Update([]byte("hello"))
	d := h.Finalize()

	encoded := Base32.Encode(d)
	for _, r := range encoded {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7'), "unexpected rune %q in encoded digest", r)
	}

	decoded, err := Base32.Decode(encoded)
	require.NoError(t, err)
	assert.True(t, d.Equal(decoded))
}

func TestBase32DecodeError(t *testing.T) {
	_, err := Base32.Decode("not valid base32!!")
	require.Error(t, err)
	var decErr DecodeError
	assert.ErrorAs(t, err, &decErr)
}
