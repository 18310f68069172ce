package generators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryCornerCasesFourBits(t *testing.T) {
	got, err := Collect[uint64](BinaryCornerCases(4))
	assert.NoError(t, err)
	assert.Equal(t, []uint64{15, 0, 8, 1, 7, 14, 10, 5}, got)
}

func TestBinaryCornerCasesEightBits(t *testing.T) {
	got, err := Collect[uint64](BinaryCornerCases(8))
	assert.NoError(t, err)
	assert.Equal(t, []uint64{255, 0, 128, 1, 127, 254, 192, 3, 63, 252, 170, 85}, got)
}

// TestBinaryCornerCasesDedupesSmallBitlengths exercises the duplicate
// removal path: at bitlength 1 and 2 several of the constructed values
// collide (e.g. high-1-ones == low-1-ones == all-ones at bitlength 1).
func TestBinaryCornerCasesDedupesSmallBitlengths(t *testing.T) {
	got1, err := Collect[uint64](BinaryCornerCases(1))
	assert.NoError(t, err)
	assert.Equal(t, []uint64{1, 0}, got1)

	got2, err := Collect[uint64](BinaryCornerCases(2))
	assert.NoError(t, err)
	assert.Equal(t, []uint64{3, 0, 2, 1}, got2)
}

func TestBinaryCornerCasesNoDuplicates(t *testing.T) {
	for _, bl := range []int{1, 2, 3, 4, 8, 16} {
		got, err := Collect[uint64](BinaryCornerCases(bl))
		assert.NoError(t, err)
		seen := make(map[uint64]bool)
		for _, v := range got {
			assert.False(t, seen[v], "bitlength %d: duplicate value %d", bl, v)
			seen[v] = true
		}
	}
}

func TestBinaryCornerCasesRewindIsIdempotent(t *testing.T) {
	g := BinaryCornerCases(8)
	first, err := Collect[uint64](g)
	assert.NoError(t, err)
	g.Rewind()
	second, err := Collect[uint64](g)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
