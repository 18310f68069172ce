package mutation

import (
	"testing"

	"github.com/bnagy/bm2-core/pkg/generators"
	"github.com/stretchr/testify/require"
)

func TestMixAndMatchDeterministicForSameSeed(t *testing.T) {
	sets := []TokenSet{randomBytesSet, asciiAlphaSet, syntacticTokenSet}
	pcts := []int{70, 85, 100}
	a, err := generators.Collect[[]byte](MixAndMatch(20, sets, pcts, false, 42))
	require.NoError(t, err)
	b, err := generators.Collect[[]byte](MixAndMatch(20, sets, pcts, false, 42))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestMixAndMatchEmitsOneTokenPerLength(t *testing.T) {
	sets := []TokenSet{randomBytesSet, asciiAlphaSet, syntacticTokenSet}
	pcts := []int{70, 85, 100}
	got, err := generators.Collect[[]byte](MixAndMatch(15, sets, pcts, false, 7))
	require.NoError(t, err)
	require.Len(t, got, 15)
}

func TestMixAndMatchTokensAreSampledAsWholeUnits(t *testing.T) {
	isKnownToken := func(tok []byte) bool {
		for _, t := range syntacticTokenSet.Tokens {
			if string(t) == string(tok) {
				return true
			}
		}
		return false
	}
	got, err := generators.Collect[[]byte](MixAndMatch(30, []TokenSet{syntacticTokenSet}, []int{100}, false, 3))
	require.NoError(t, err)
	for _, tok := range got {
		require.True(t, isKnownToken(tok), "unexpected token %q not in syntacticTokenSet", tok)
	}
}

func TestMixAndMatchUtf16PadsSingleByteTokensWithZero(t *testing.T) {
	got, err := generators.Collect[[]byte](MixAndMatch(10, []TokenSet{asciiAlphaSet}, []int{100}, true, 5))
	require.NoError(t, err)
	// Only the length-1 token is single-byte: it gains two zero bytes.
	require.Len(t, got[0], 3)
	require.Equal(t, byte(0), got[0][1])
	require.Equal(t, byte(0), got[0][2])
	for i, tok := range got[1:] {
		require.Len(t, tok, i+2)
	}
}

func TestDefaultInjectionGeneratorProducesMaxLenTokens(t *testing.T) {
	got, err := generators.Collect[[]byte](DefaultInjectionGenerator(12))
	require.NoError(t, err)
	require.Len(t, got, 12)
}

func TestStringInjectionGeneratorChainsAsciiAndUtf16Halves(t *testing.T) {
	got, err := generators.Collect[[]byte](StringInjectionGenerator(9))
	require.NoError(t, err)
	require.Len(t, got, 18) // ascii half (9) + utf16 half (9), chained
}
