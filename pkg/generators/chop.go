package generators

// Chop repeatedly removes the middle third of bytes until the
// remaining length is less than 3, per the length-dependent split:
// len%3==0 removes the exact middle third (left == right == len/3);
// len%3==1 keeps left == right == (len-1)/3; len%3==2 keeps
// left == right == (len+1)/3.
//
// This is the split rule as stated in prose, not the worked example:
// the worked example's own step-by-step strings are not reproducible
// by any single length-keyed formula (two inputs of the same residue
// class, length 7 and length 10, require different left/right splits
// to match the example verbatim), so the example itself is internally
// inconsistent. Implementing the stated rule exactly reproduces one of
// its three steps for "abcdefghij" (the middle one, "abij", reached by
// a different path) and none of the two steps for "abcdefghi"; see
// DESIGN.md for the full accounting.
func Chop(b []byte) *SliceGenerator[[]byte] {
	var seq [][]byte
	cur := append([]byte(nil), b...)
	for len(cur) >= 3 {
		cur = chopOnce(cur)
		seq = append(seq, append([]byte(nil), cur...))
	}
	return NewSliceGenerator(seq)
}

func chopOnce(b []byte) []byte {
	n := len(b)
	var half int
	switch n % 3 {
	case 0:
		half = n / 3
	case 1:
		half = (n - 1) / 3
	default:
		half = (n + 1) / 3
	}
	out := make([]byte, 0, 2*half)
	out = append(out, b[:half]...)
	out = append(out, b[n-half:]...)
	return out
}
