package mutation

import (
	"github.com/bnagy/bm2-core/pkg/binstruct"
	"github.com/bnagy/bm2-core/pkg/generators"
)

// Fixup is a pure transform applied to a mutated structure before it is
// considered "ready to send". Fixups run left to right.
type Fixup func(*binstruct.Binstruct) *binstruct.Binstruct

// Options configures a basic_tests run.
type Options struct {
	MaxLen      int
	SendUnfixed bool
	Skip        map[string]bool // field names to skip entirely
	FuzzLevel   int
	RandomCases int
	Fixups      []Fixup
	Registry    *Registry
}

// applyFixups runs the fixup chain left to right.
func applyFixups(s *binstruct.Binstruct, fixups []Fixup) *binstruct.Binstruct {
	for _, fx := range fixups {
		s = fx(s)
	}
	return s
}

// BasicTests walks s through the replace, delete, inject, and group
// phases described in spec.md §4.3, calling yield with each mutated
// structure. Returning false from yield stops the traversal early.
//
// The replace phase restores each field's original value after every
// yield and asserts (via panic, since this indicates a fuzzer bug, not
// a target bug) that Encode() matches the original — the invariant
// check spec.md §8 property 3 requires.
func BasicTests(s *binstruct.Binstruct, opts Options, yield func(*binstruct.Binstruct) bool) {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	originalEncoded := s.Encode()

	if !replacePhase(s, opts, originalEncoded, yield) {
		return
	}
	if opts.Skip == nil || !opts.Skip["__no_delete__"] {
		if !deletePhase(s, opts, yield) {
			return
		}
	}
	if opts.Skip == nil || !opts.Skip["__no_inject__"] {
		if !injectPhase(s, opts, yield) {
			return
		}
	}
	groupPhase(s, opts, yield)
}

func replacePhase(s *binstruct.Binstruct, opts Options, original []byte, yield func(*binstruct.Binstruct) bool) bool {
	cont := true
	s.DeepEach(func(f *binstruct.Field) bool {
		if opts.Skip[f.Name] {
			return true
		}
		gen := opts.Registry.Replacement(f.Kind)(f, opts.MaxLen, false, opts.RandomCases, opts.FuzzLevel)
		orig := f.Clone()

		for gen.HasNext() {
			v, err := gen.Next()
			if err != nil {
				break
			}
			raw := truncateToLastBits(bytesToBitstring(v), f.LengthBits)
			if err := f.SetRaw(raw); err != nil {
				continue
			}

			if opts.SendUnfixed {
				if !yield(s) {
					cont = false
					restore(f, orig)
					return false
				}
			}
			fixed := applyFixups(s, opts.Fixups)
			if !yield(fixed) {
				cont = false
				restore(f, orig)
				return false
			}
			restore(f, orig)
			invariantCheck(s, original)
		}
		restore(f, orig)
		invariantCheck(s, original)
		return cont
	})
	return cont
}

func deletePhase(s *binstruct.Binstruct, opts Options, yield func(*binstruct.Binstruct) bool) bool {
	cont := true
	s.DeepEach(func(f *binstruct.Field) bool {
		if opts.Skip[f.Name] {
			return true
		}
		orig := f.Clone()
		emptied := &binstruct.Field{Name: f.Name, Kind: f.Kind, Endian: f.Endian, LengthType: binstruct.Variable, LengthBits: f.LengthBits}
		if err := s.Replace(f.Name, emptied); err == nil {
			if !yield(s) {
				cont = false
			}
		}
		restoreField(s, f.Name, orig)
		return cont
	})
	return cont
}

func injectPhase(s *binstruct.Binstruct, opts Options, yield func(*binstruct.Binstruct) bool) bool {
	cont := true
	first := true
	s.DeepEach(func(f *binstruct.Field) bool {
		if opts.Skip[f.Name] {
			return true
		}
		orig := f.Clone()
		injGen := opts.Registry.Injection(f.Kind)(opts.MaxLen)

		for injGen.HasNext() {
			chunk, err := injGen.Next()
			if err != nil {
				break
			}
			before := append(append([]byte(nil), chunk...), f.Encode()...)
			replaced := &binstruct.Field{Name: f.Name, Kind: binstruct.KindString, Endian: f.Endian, LengthType: binstruct.Variable, LengthBits: len(before) * 8}
			_ = replaced.Set(before)
			if err := s.Replace(f.Name, replaced); err == nil {
				if !yield(s) {
					cont = false
					restoreField(s, f.Name, orig)
					return false
				}
				restoreField(s, f.Name, orig)
			}

			if first {
				after := append(append([]byte(nil), f.Encode()...), chunk...)
				replaced2 := &binstruct.Field{Name: f.Name, Kind: binstruct.KindString, Endian: f.Endian, LengthType: binstruct.Variable, LengthBits: len(after) * 8}
				_ = replaced2.Set(after)
				if err := s.Replace(f.Name, replaced2); err == nil {
					if !yield(s) {
						cont = false
						restoreField(s, f.Name, orig)
						return false
					}
					restoreField(s, f.Name, orig)
				}
			}
		}
		first = false
		return cont
	})
	return cont
}

func groupPhase(s *binstruct.Binstruct, opts Options, yield func(*binstruct.Binstruct) bool) {
	for _, fieldNames := range s.Groups() {
		if len(fieldNames) == 0 {
			continue
		}
		fields := make([]*binstruct.Field, 0, len(fieldNames))
		origs := make([]*binstruct.Field, 0, len(fieldNames))
		gens := make([]generators.Generator[[]byte], 0, len(fieldNames))
		for _, name := range fieldNames {
			f, err := s.Field(name)
			if err != nil {
				continue
			}
			fields = append(fields, f)
			origs = append(origs, f.Clone())
			gens = append(gens, opts.Registry.Replacement(f.Kind)(f, opts.MaxLen, false, 8*opts.FuzzLevel, opts.FuzzLevel))
		}
		if len(fields) == 0 {
			continue
		}
		product, err := generators.NewCartesian(gens...)
		if err != nil {
			continue
		}
		for product.HasNext() {
			tuple, err := product.Next()
			if err != nil {
				break
			}
			for i, v := range tuple {
				raw := truncateToLastBits(bytesToBitstring(v), fields[i].LengthBits)
				_ = fields[i].SetRaw(raw)
			}
			if !yield(s) {
				break
			}
		}
		for i, f := range fields {
			restore(f, origs[i])
		}
	}
}

// TemplateFromBytes wraps a raw seed corpus as a single variable-length
// string field, for callers (the producer binary's default corpus mode)
// that have a byte-oriented seed rather than a hand-declared Binstruct.
func TemplateFromBytes(name string, raw []byte) (*binstruct.Binstruct, error) {
	s := binstruct.NewBinstruct(name, binstruct.BigEndian)
	f, err := binstruct.NewField(name+"_body", len(raw)*8, binstruct.Variable, binstruct.BigEndian, binstruct.KindString, raw, "raw seed body")
	if err != nil {
		return nil, err
	}
	if err := s.AddField(f); err != nil {
		return nil, err
	}
	return s, nil
}

// Generate runs BasicTests to exhaustion and returns every mutated
// encoding as a ready-to-replay generator, per the "compute the whole
// deterministic list, then emit it" pattern the corner-case generators
// already use.
func Generate(s *binstruct.Binstruct, opts Options) *generators.SliceGenerator[[]byte] {
	var out [][]byte
	BasicTests(s, opts, func(mutated *binstruct.Binstruct) bool {
		out = append(out, append([]byte(nil), mutated.Encode()...))
		return true
	})
	return generators.NewSliceGenerator(out)
}

// CountTests runs BasicTests with the yield body replaced by a counter,
// per spec.md §4.3's count_tests contract: the result must equal the
// number of yields a normal run produces.
func CountTests(s *binstruct.Binstruct, opts Options) int {
	count := 0
	BasicTests(s, opts, func(*binstruct.Binstruct) bool {
		count++
		return true
	})
	return count
}

func restore(f *binstruct.Field, orig *binstruct.Field) {
	_ = f.SetRaw(orig.Bitstring)
}

func restoreField(s *binstruct.Binstruct, name string, orig *binstruct.Field) {
	_ = s.Replace(name, orig)
}

func invariantCheck(s *binstruct.Binstruct, original []byte) {
	got := s.Encode()
	if len(got) != len(original) {
		panic("mutation: replace-phase restore invariant violated: length mismatch")
	}
	for i := range got {
		if got[i] != original[i] {
			panic("mutation: replace-phase restore invariant violated: content mismatch")
		}
	}
}

func bytesToBitstring(b []byte) []byte {
	out := make([]byte, len(b)*8)
	for i, by := range b {
		for j := 0; j < 8; j++ {
			if (by>>(7-uint(j)))&1 == 1 {
				out[i*8+j] = '1'
			} else {
				out[i*8+j] = '0'
			}
		}
	}
	return out
}

// truncateToLastBits returns the last n bits of bits, left-truncating
// longer inputs and left-padding shorter inputs with '0' bits.
func truncateToLastBits(bits []byte, n int) []byte {
	if len(bits) <= n {
		padded := make([]byte, n)
		copy(padded[n-len(bits):], bits)
		for i := 0; i < n-len(bits); i++ {
			padded[i] = '0'
		}
		return padded
	}
	return bits[len(bits)-n:]
}
