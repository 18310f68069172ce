package generators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDuplicateFilterSuppressesRepeats(t *testing.T) {
	src := NewSliceGenerator([][]byte{
		[]byte("a"), []byte("b"), []byte("a"), []byte("c"), []byte("b"),
	})
	f := NewDuplicateFilter(src)

	got, err := Collect[[]byte](f)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, got)
}

func TestDuplicateFilterRewindForgetsSeenSet(t *testing.T) {
	src := NewSliceGenerator([][]byte{[]byte("a"), []byte("a")})
	f := NewDuplicateFilter(src)

	first, err := Collect[[]byte](f)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a")}, first)

	f.Rewind()
	second, err := Collect[[]byte](f)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
