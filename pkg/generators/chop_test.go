package generators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestChopTenBytes and TestChopNineBytes document the implemented split rule against the worked
// example in the property table. It reproduces the implementation's own
// deterministic output, not the worked example's literal strings: see
// the Chop doc comment and DESIGN.md for why no single length-keyed
// split formula can satisfy both of that example's sequences at once.
func TestChopTenBytes(t *testing.T) {
	got, err := Collect[[]byte](Chop([]byte("abcdefghij")))
	a := assert.New(t)
	a.NoError(err)
	want := [][]byte{[]byte("abchij"), []byte("abij"), []byte("aj")}
	a.Equal(want, got)
}

func TestChopNineBytes(t *testing.T) {
	got, err := Collect[[]byte](Chop([]byte("abcdefghi")))
	a := assert.New(t)
	a.NoError(err)
	want := [][]byte{[]byte("abcghi"), []byte("abhi"), []byte("ai")}
	a.Equal(want, got)
}

func TestChopTerminatesBelowThreeBytes(t *testing.T) {
	for _, in := range [][]byte{[]byte("ab"), []byte("a"), {}} {
		got, err := Collect[[]byte](Chop(in))
		assert.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestChopShrinksEachStep(t *testing.T) {
	seq, err := Collect[[]byte](Chop([]byte("abcdefghijklmno")))
	a := assert.New(t)
	a.NoError(err)
	prev := 15
	for _, s := range seq {
		a.Less(len(s), prev)
		prev = len(s)
	}
	a.Less(prev, 3)
}
