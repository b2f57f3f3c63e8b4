package orderedfiles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sit-fyi/sit-sub000/digest"
)

func reader(s string) *strings.Reader { return strings.NewReader(s) }

func TestNewSortsByNormalizedName(t *testing.T) {
	files := New([]File{
		{Name: "b/c", Reader: reader("1")},
		{Name: "a", Reader: reader("2")},
		{Name: "b\\a", Reader: reader("3")},
	})
	var names []string
	for _, f := range files.Files() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a", "b\\a", "b/c"}, names)
}

func TestHashIsOrderIndependent(t *testing.T) {
	algo := digest.DefaultHashingAlgorithm()

	h1, err := algo.NewHasher()
	require.NoError(t, err)
	a := New([]File{
		{Name: "z", Reader: reader("last")},
		{Name: "a", Reader: reader("first")},
	})
	require.NoError(t, a.Hash(h1))

	h2, err := algo.NewHasher()
	require.NoError(t, err)
	b := New([]File{
		{Name: "a", Reader: reader("first")},
		{Name: "z", Reader: reader("last")},
	})
	require.NoError(t, b.Hash(h2))

	assert.True(t, h1.Finalize().Equal(h2.Finalize()))
}

func TestHashDiffersOnContent(t *testing.T) {
	algo := digest.DefaultHashingAlgorithm()

	h1, err := algo.NewHasher()
	require.NoError(t, err)
	a := New([]File{{Name: "a", Reader: reader("one")}})
	require.NoError(t, a.Hash(h1))

	h2, err := algo.NewHasher()
	require.NoError(t, err)
	b := New([]File{{Name: "a", Reader: reader("two")}})
	require.NoError(t, b.Hash(h2))

	assert.False(t, h1.Finalize().Equal(h2.Finalize()))
}

func TestHashAndVisitsEveryFileAndChunk(t *testing.T) {
	algo := digest.DefaultHashingAlgorithm()
	h, err := algo.NewHasher()
	require.NoError(t, err)

	files := New([]File{
		{Name: "b", Reader: reader("world")},
		{Name: "a", Reader: reader("hello")},
	})

	var opened []string
	var written map[string][]byte
	written = map[string][]byte{}

	err = files.HashAnd(h, func(name string) (interface{}, error) {
		opened = append(opened, name)
		return name, nil
	}, func(token interface{}, chunk []byte) (interface{}, error) {
		name := token.(string)
		written[name] = append(written[name], chunk...)
		return token, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, opened)
	assert.Equal(t, "hello", string(written["a"]))
	assert.Equal(t, "world", string(written["b"]))
}

func TestAddMerges(t *testing.T) {
	a := New([]File{{Name: "a", Reader: reader("1")}})
	b := New([]File{{Name: "b", Reader: reader("2")}})
	merged := a.Add(b)
	require.Equal(t, 2, merged.Len())
	assert.Equal(t, "a", merged.Files()[0].Name)
	assert.Equal(t, "b", merged.Files()[1].Name)
}

func TestWithoutRemovesByName(t *testing.T) {
	files := New([]File{
		{Name: "a", Reader: reader("1")},
		{Name: "b", Reader: reader("2")},
	})
	remaining := files.Without("a")
	require.Equal(t, 1, remaining.Len())
	assert.Equal(t, "b", remaining.Files()[0].Name)
}

func TestWithoutOnMissingNameIsNoop(t *testing.T) {
	files := New([]File{{Name: "a", Reader: reader("1")}})
	remaining := files.Without("does-not-exist")
	assert.Equal(t, 1, remaining.Len())
}
