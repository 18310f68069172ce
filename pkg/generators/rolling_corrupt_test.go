package generators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingCorruptOutputLengthMatchesInput(t *testing.T) {
	data := []byte{0, 0, 0, 0}
	got, err := Collect[[]byte](RollingCorrupt(data, 8, 8, 0, false, 1))
	require.NoError(t, err)
	require.Len(t, got, 120) // 4 positions * (18 +-k cases + 12 corner cases)
	for _, v := range got {
		require.Len(t, v, len(data))
	}
}

func TestRollingCorruptArithmeticOnZeroWindow(t *testing.T) {
	data := []byte{0, 0, 0, 0}
	got, err := Collect[[]byte](RollingCorrupt(data, 8, 8, 0, false, 1))
	require.NoError(t, err)
	// First window (byte 0), k=1: +1 then -1 (wrapping mod 256).
	require.Equal(t, []byte{1, 0, 0, 0}, got[0])
	require.Equal(t, []byte{255, 0, 0, 0}, got[1])
}

func TestRollingCorruptLittleEndianByteSwap(t *testing.T) {
	data := []byte{1, 0}
	got, err := Collect[[]byte](RollingCorrupt(data, 16, 16, 0, true, 1))
	require.NoError(t, err)
	require.Len(t, got, 34) // 1 position * (18 +-k cases + 16 corner cases)
	// Little-endian value of {0x01,0x00} is 1; +1 -> 2, -1 -> 0.
	require.Equal(t, []byte{2, 0}, got[0])
	require.Equal(t, []byte{0, 0}, got[1])
}

func TestRollingCorruptRandomCasesAddExtraEntriesPerPosition(t *testing.T) {
	data := []byte{0, 0}
	base, err := Collect[[]byte](RollingCorrupt(data, 8, 8, 0, false, 1))
	require.NoError(t, err)
	withRandom, err := Collect[[]byte](RollingCorrupt(data, 8, 8, 5, false, 1))
	require.NoError(t, err)
	require.Len(t, withRandom, len(base)+5*2) // 2 positions, 5 random cases each
}

func TestRollingCorruptStopsBeforeOverrunningTail(t *testing.T) {
	data := []byte{0, 0, 0}
	got, err := Collect[[]byte](RollingCorrupt(data, 16, 16, 0, false, 1))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, v := range got {
		require.Len(t, v, 3)
	}
}
