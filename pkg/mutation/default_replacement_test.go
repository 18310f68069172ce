package mutation

import (
	"testing"

	"github.com/bnagy/bm2-core/pkg/binstruct"
	"github.com/bnagy/bm2-core/pkg/generators"
	"github.com/stretchr/testify/require"
)

func TestDefaultReplacementEnumeratesSmallFixedField(t *testing.T) {
	f, err := binstruct.NewField("n", 3, binstruct.Fixed, binstruct.BigEndian, binstruct.KindUnsigned, 0, "")
	require.NoError(t, err)

	got, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 0, false, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 8) // 2^3 possible values
	require.Equal(t, []byte{0}, got[0])
	require.Equal(t, []byte{7}, got[7])
}

func TestDefaultReplacementUsesRollingCorruptForWideFixedField(t *testing.T) {
	f, err := binstruct.NewField("n", 16, binstruct.Fixed, binstruct.BigEndian, binstruct.KindUnsigned, 0, "")
	require.NoError(t, err)

	got, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 0, false, 0, 1))
	require.NoError(t, err)
	want, err := generators.Collect[[]byte](generators.RollingCorrupt(f.Encode(), 16, 16, 0, false, 1))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDefaultReplacementLittleEndianFieldUsesSwappedRollingCorrupt(t *testing.T) {
	f, err := binstruct.NewField("n", 16, binstruct.Fixed, binstruct.LittleEndian, binstruct.KindUnsigned, 1, "")
	require.NoError(t, err)

	got, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 0, false, 0, 1))
	require.NoError(t, err)
	want, err := generators.Collect[[]byte](generators.RollingCorrupt(f.Encode(), 16, 16, 0, true, 1))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVariableWindowsBuckets(t *testing.T) {
	require.Equal(t, []windowStep{{window: 8, step: 8}}, variableWindows(8))
	require.Equal(t, []windowStep{{window: 16, step: 16}}, variableWindows(20))
	require.Equal(t, []windowStep{{window: 16, step: 16}, {window: 32, step: 32}}, variableWindows(40))
}

func TestDefaultReplacementVariableFieldGrowsAndChopsWhenNotPreservingLength(t *testing.T) {
	f, err := binstruct.NewField("s", 64, binstruct.Variable, binstruct.BigEndian, binstruct.KindString, []byte("abcdefgh"), "")
	require.NoError(t, err)

	withGrowth, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 32, false, 0, 1))
	require.NoError(t, err)
	withoutGrowth, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 32, true, 0, 1))
	require.NoError(t, err)
	require.Greater(t, len(withGrowth), len(withoutGrowth))
}

func TestDefaultReplacementHigherFuzzLevelAddsExtraWindows(t *testing.T) {
	f, err := binstruct.NewField("s", 64, binstruct.Variable, binstruct.BigEndian, binstruct.KindString, []byte("abcdefgh"), "")
	require.NoError(t, err)

	level1, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 32, true, 0, 1))
	require.NoError(t, err)
	level2, err := generators.Collect[[]byte](DefaultReplacementGenerator(f, 32, true, 0, 2))
	require.NoError(t, err)
	require.Greater(t, len(level2), len(level1))
}
