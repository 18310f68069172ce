package mutation

import (
	"github.com/bnagy/bm2-core/pkg/binstruct"
	"github.com/bnagy/bm2-core/pkg/generators"
)

// DefaultReplacementGenerator implements the length/type-directed
// default replacement strategy from spec.md §4.3.
func DefaultReplacementGenerator(f *binstruct.Field, maxLen int, preserveLength bool, randomCases, fuzzLevel int) generators.Generator[[]byte] {
	le := f.Endian == binstruct.LittleEndian

	if f.LengthType == binstruct.Fixed || maxLen == 0 {
		if f.Length() > 8 {
			return generators.RollingCorrupt(f.Encode(), f.Length(), f.Length(), randomCases, le, 1)
		}
		return enumerateAsBytes(f.Length())
	}

	// Variable-length field.
	windows := variableWindows(f.Length())
	if fuzzLevel > 1 {
		windows = append(windows, windowStep{window: 13, step: 5}, windowStep{window: 7, step: 7})
	}

	gens := make([]generators.Generator[[]byte], 0, len(windows)+2)
	for _, ws := range windows {
		gens = append(gens, generators.RollingCorrupt(f.Encode(), ws.window, ws.step, randomCases, le, 1))
	}

	if !preserveLength {
		chunk := f.Encode()
		grower := generators.NewRepeater([][]byte{chunk}, 1, 1, max(1, maxLen/max(1, len(chunk))), generators.RepeatChunk)
		gens = append(gens, grower, generators.Chop(chunk))
	}

	return generators.NewChain(gens...)
}

type windowStep struct {
	window, step int
}

// variableWindows picks the rolling-corrupt window sizes for a
// variable-length field based on its current length, per spec.md §4.3:
// window 8, 16, or 16-then-32 depending on length buckets.
func variableWindows(lengthBits int) []windowStep {
	switch {
	case lengthBits < 16:
		return []windowStep{{window: 8, step: 8}}
	case lengthBits < 32:
		return []windowStep{{window: 16, step: 16}}
	default:
		return []windowStep{{window: 16, step: 16}, {window: 32, step: 32}}
	}
}

// enumerateAsBytes enumerates every value in [0, 2^length) packed into
// minimal big-endian bytes, for fixed fields of length <= 8 bits.
func enumerateAsBytes(length int) generators.Generator[[]byte] {
	n := uint64(1) << uint(length)
	out := make([][]byte, 0, n)
	for v := uint64(0); v < n; v++ {
		out = append(out, []byte{byte(v)})
	}
	return generators.NewSliceGenerator(out)
}
