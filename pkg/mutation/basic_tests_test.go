package mutation

import (
	"testing"

	"github.com/bnagy/bm2-core/pkg/binstruct"
	"github.com/stretchr/testify/require"
)

func simpleStruct(t *testing.T) *binstruct.Binstruct {
	t.Helper()
	s := binstruct.NewBinstruct("pkt", binstruct.BigEndian)
	f, err := binstruct.NewField("flag", 3, binstruct.Fixed, binstruct.BigEndian, binstruct.KindUnsigned, 0, "")
	require.NoError(t, err)
	require.NoError(t, s.AddField(f))
	return s
}

func TestBasicTestsReplacePhaseRestoresOriginalEncoding(t *testing.T) {
	s := simpleStruct(t)
	original := append([]byte(nil), s.Encode()...)

	require.NotPanics(t, func() {
		BasicTests(s, Options{Skip: map[string]bool{"__no_delete__": true, "__no_inject__": true}}, func(*binstruct.Binstruct) bool {
			return true
		})
	})
	require.Equal(t, original, s.Encode())
}

func TestBasicTestsYieldFalseStopsTraversalEarly(t *testing.T) {
	s := simpleStruct(t)
	count := 0
	BasicTests(s, Options{Skip: map[string]bool{"__no_delete__": true, "__no_inject__": true}}, func(*binstruct.Binstruct) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)
}

func TestBasicTestsSkipFieldExcludesItFromReplaceAndOtherPhases(t *testing.T) {
	s := simpleStruct(t)
	count := 0
	BasicTests(s, Options{Skip: map[string]bool{"flag": true}}, func(*binstruct.Binstruct) bool {
		count++
		return true
	})
	require.Equal(t, 0, count)
}

func TestCountTestsMatchesGenerateOutputCount(t *testing.T) {
	s := simpleStruct(t)
	opts := Options{Skip: map[string]bool{"__no_inject__": true}}
	n := CountTests(s, opts)
	gen := Generate(s, opts)
	require.Equal(t, n, gen.Len())
}

func TestTemplateFromBytesRoundTripsRawSeed(t *testing.T) {
	raw := []byte("seed body bytes")
	s, err := TemplateFromBytes("seed", raw)
	require.NoError(t, err)
	require.Equal(t, raw, s.Encode())
}

func TestBasicTestsDeletePhaseEmptiesFieldThenRestores(t *testing.T) {
	s := simpleStruct(t)
	original := append([]byte(nil), s.Encode()...)
	opts := Options{Skip: map[string]bool{"__no_inject__": true}}

	seenEmptied := false
	BasicTests(s, opts, func(mutated *binstruct.Binstruct) bool {
		f, err := mutated.Field("flag")
		if err == nil && f.LengthType == binstruct.Variable {
			seenEmptied = true
		}
		return true
	})
	require.True(t, seenEmptied, "expected the delete phase to yield a structure with an emptied field")
	require.Equal(t, original, s.Encode())
}
