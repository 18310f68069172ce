package mutation

import (
	"math/rand"

	"github.com/bnagy/bm2-core/pkg/generators"
)

// TokenSet is a named pool of bytes (or whole tokens) mix_and_match can
// sample from.
type TokenSet struct {
	Name    string
	Bytes   []byte   // single-byte alphabet, sampled byte by byte
	Tokens  [][]byte // whole syntactic tokens, sampled as a unit
}

// randomBytesSet, asciiAlphaSet and syntacticTokenSet are the three
// pools the default injection chain mixes, matching the "random bytes,
// ASCII alphabetics, syntactic tokens" description in spec.md §4.3.
var randomBytesSet = TokenSet{Name: "random"}

var asciiAlphaSet = TokenSet{
	Name:  "ascii",
	Bytes: []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"),
}

var syntacticTokenSet = TokenSet{
	Name: "syntax",
	Tokens: [][]byte{
		[]byte("%n"), []byte("%s"), []byte("' OR '1'='1"), []byte("../../../etc/passwd"),
		[]byte("\x00\x00\x00\x00"), []byte("<script>"), []byte("${jndi:ldap://x}"),
		[]byte(";;"), []byte("\r\n\r\n"), []byte("AAAAAAAAAAAAAAAA"),
	},
}

var badSurrogateSet = TokenSet{
	Name: "bad-surrogate",
	Tokens: [][]byte{
		{0x00, 0xD8}, {0xFF, 0xDB}, {0x00, 0xDC}, {0xFF, 0xDF},
	},
}

func sample(rng *rand.Rand, set TokenSet, length int) []byte {
	if len(set.Tokens) > 0 {
		return set.Tokens[rng.Intn(len(set.Tokens))]
	}
	if len(set.Bytes) > 0 {
		out := make([]byte, length)
		for i := range out {
			out[i] = set.Bytes[rng.Intn(len(set.Bytes))]
		}
		return out
	}
	// Random-bytes set: uniform bytes.
	out := make([]byte, length)
	rng.Read(out)
	return out
}

// MixAndMatch produces, for each requested length 1..maxLen, a token by
// rolling 1..100 against the cumulative percentages and sampling from
// the matched set. In UTF-16 mode, a single-byte token is padded to two
// bytes with a zero byte and then has one more zero byte appended (three
// bytes in all); longer tokens are left unchanged. UTF-16 mode is what
// the bad-surrogate variant described in spec.md §4.3 uses.
func MixAndMatch(maxLen int, sets []TokenSet, percentages []int, utf16 bool, seed int64) generators.Generator[[]byte] {
	rng := rand.New(rand.NewSource(seed))
	var out [][]byte
	for length := 1; length <= maxLen; length++ {
		roll := rng.Intn(100) + 1
		var chosen TokenSet
		for i, cum := range percentages {
			if roll <= cum {
				chosen = sets[i]
				break
			}
		}
		token := sample(rng, chosen, length)
		if utf16 && len(token) == 1 {
			token = append(append([]byte(nil), token...), 0, 0)
		}
		out = append(out, token)
	}
	return generators.NewSliceGenerator(out)
}

// DefaultInjectionGenerator builds the 70/85/100-weighted mix of random
// bytes, ASCII alphabetics, and syntactic tokens described in spec.md
// §4.3's default injection chain.
func DefaultInjectionGenerator(maxLen int) generators.Generator[[]byte] {
	return MixAndMatch(maxLen,
		[]TokenSet{randomBytesSet, asciiAlphaSet, syntacticTokenSet},
		[]int{70, 85, 100}, false, 1)
}

// StringInjectionGenerator front-loads a mostly-ASCII mix (per the
// "string override" in spec.md §4.3) and chains a UTF-16 bad-surrogate
// variant behind it.
func StringInjectionGenerator(maxLen int) generators.Generator[[]byte] {
	ascii := MixAndMatch(maxLen,
		[]TokenSet{asciiAlphaSet, asciiAlphaSet, syntacticTokenSet},
		[]int{85, 95, 100}, false, 2)
	utf16 := MixAndMatch(maxLen,
		[]TokenSet{asciiAlphaSet, badSurrogateSet},
		[]int{60, 100}, true, 3)
	return generators.NewChain(ascii, utf16)
}
