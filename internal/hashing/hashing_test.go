package hashing

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexPacksFieldAndFeature(t *testing.T) {
	h := New(10, 5)

	idx, err := h.Index(3, "user=42")
	require.NoError(t, err)

	field, feature := h.Decode(idx)
	assert.Equal(t, 3, field)
	assert.Equal(t, uint32(xxhash.Sum64String("user=42"))&(1<<10-1), feature)
	assert.Equal(t, uint32(3)<<10|feature, idx)
}

func TestIndexIsDeterministic(t *testing.T) {
	a, b := New(20, 30), New(20, 30)

	for _, tok := range []string{"", "a", "site=example.com", "ad=9917"} {
		ia, err := a.Index(7, tok)
		require.NoError(t, err)
		ib, err := b.Index(7, tok)
		require.NoError(t, err)
		assert.Equal(t, ia, ib, "token %q", tok)
		assert.Less(t, a.Feature(tok), uint32(1<<20))
	}
}

func TestIndexFieldRange(t *testing.T) {
	h := New(8, 4)

	_, err := h.Index(4, "x")
	assert.ErrorIs(t, err, ErrFieldRange)

	_, err = h.Index(-1, "x")
	assert.ErrorIs(t, err, ErrFieldRange)

	_, err = h.Index(0, "x")
	assert.NoError(t, err)
}
