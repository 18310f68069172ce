/*
Package mutation implements the fuzzer's mutation engine: per-field-type
injection and replacement generator registries, and the basic_tests
driver that walks a Binstruct through replace/delete/inject/group
phases, yielding a sequence of mutated structures.
*/
package mutation

import (
	"github.com/bnagy/bm2-core/pkg/binstruct"
	"github.com/bnagy/bm2-core/pkg/generators"
)

// InjectionFunc builds a generator of content to inject before or after
// a field, bounded to maxLen bytes per chunk.
type InjectionFunc func(maxLen int) generators.Generator[[]byte]

// ReplacementFunc builds a generator of replacement content for a
// field.
type ReplacementFunc func(f *binstruct.Field, maxLen int, preserveLength bool, randomCases, fuzzLevel int) generators.Generator[[]byte]

// Registry holds the two type-keyed generator tables described in
// spec.md §4.3. Zero value is usable; NewRegistry pre-populates the
// defaults.
type Registry struct {
	injection   map[binstruct.Kind]InjectionFunc
	replacement map[binstruct.Kind]ReplacementFunc
	defaultRepl ReplacementFunc
}

// NewRegistry builds the default mutation registry: every built-in
// field kind gets the default injection chain and the default
// replacement generator described in spec.md §4.3.
func NewRegistry() *Registry {
	r := &Registry{
		injection:   make(map[binstruct.Kind]InjectionFunc),
		replacement: make(map[binstruct.Kind]ReplacementFunc),
		defaultRepl: DefaultReplacementGenerator,
	}
	for _, k := range []binstruct.Kind{
		binstruct.KindUnsigned, binstruct.KindSigned, binstruct.KindHexstring,
		binstruct.KindOctetstring, binstruct.KindBitstring,
	} {
		r.injection[k] = DefaultInjectionGenerator
	}
	r.injection[binstruct.KindString] = StringInjectionGenerator
	return r
}

// RegisterInjection installs an injection generator for a field kind,
// overriding any default. This is the "open for user extension at
// runtime" registry the design notes describe.
func (r *Registry) RegisterInjection(k binstruct.Kind, fn InjectionFunc) {
	r.injection[k] = fn
}

// RegisterReplacement installs a replacement generator for a field
// kind.
func (r *Registry) RegisterReplacement(k binstruct.Kind, fn ReplacementFunc) {
	r.replacement[k] = fn
}

// Injection returns the injection generator builder for a kind, falling
// back to the ASCII/random/token default mix for unregistered kinds.
func (r *Registry) Injection(k binstruct.Kind) InjectionFunc {
	if fn, ok := r.injection[k]; ok {
		return fn
	}
	return DefaultInjectionGenerator
}

// Replacement returns the replacement generator builder for a kind,
// falling back to the length/type-directed default.
func (r *Registry) Replacement(k binstruct.Kind) ReplacementFunc {
	if fn, ok := r.replacement[k]; ok {
		return fn
	}
	return r.defaultRepl
}
