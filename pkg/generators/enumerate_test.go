package generators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnumerateBitsCoversFullRange(t *testing.T) {
	e := NewEnumerateBits(3)
	got, err := Collect[string](e)
	require.NoError(t, err)
	require.Equal(t, []string{
		"000", "001", "010", "011", "100", "101", "110", "111",
	}, got)
}

func TestEnumerateBitsRewind(t *testing.T) {
	e := NewEnumerateBits(2)
	first, err := Collect[string](e)
	require.NoError(t, err)
	e.Rewind()
	second, err := Collect[string](e)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRandEmitsExactCountWithinRange(t *testing.T) {
	r := NewRand(4, 50, 42)
	got, err := Collect[uint64](r)
	require.NoError(t, err)
	require.Len(t, got, 50)
	for _, v := range got {
		require.Less(t, v, uint64(16))
	}
}

func TestRandRewindReproducesSameSequence(t *testing.T) {
	r := NewRand(8, 20, 7)
	first, err := Collect[uint64](r)
	require.NoError(t, err)
	r.Rewind()
	second, err := Collect[uint64](r)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
