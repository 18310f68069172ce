package binstruct

import "fmt"

// node is either a leaf *Field or a nested *Binstruct (including
// bitfield containers).
type node struct {
	field *Field
	sub   *Binstruct
}

func (n node) name() string {
	if n.field != nil {
		return n.field.Name
	}
	return n.sub.Name
}

// Binstruct is an ordered sequence of fields and nested Binstructs.
type Binstruct struct {
	Name      string
	Endian    Endianness
	IsBitfield bool // little-endian bitfields are byte-swapped on serialization

	nodes    []node
	groups   map[string][]string
	byName   map[string]*Field // hash_references: name -> field instance
}

// NewBinstruct creates an empty structure with the given endianness.
// The endianness decides whether a bitfield container is byte-swapped;
// it is not applied to the fields added to the structure.
func NewBinstruct(name string, endian Endianness) *Binstruct {
	return &Binstruct{
		Name:   name,
		Endian: endian,
		groups: make(map[string][]string),
		byName: make(map[string]*Field),
	}
}

// NewBitfield creates a nested container structure that, in
// little-endian mode, is byte-swapped on serialization but otherwise
// behaves as an invisible grouping for sub-byte fields.
func NewBitfield(name string, endian Endianness) *Binstruct {
	b := NewBinstruct(name, endian)
	b.IsBitfield = true
	return b
}

// AddField appends a field as given: the field keeps the Endian it was
// constructed with, and the structure's Endian is not applied to it.
// Fails with a name collision error if the name already exists.
func (b *Binstruct) AddField(f *Field) error {
	if _, exists := b.byName[f.Name]; exists {
		return fmt.Errorf("binstruct %q: duplicate field name %q", b.Name, f.Name)
	}
	b.nodes = append(b.nodes, node{field: f})
	b.byName[f.Name] = f
	return nil
}

// AddStruct appends a nested Binstruct (including bitfield containers).
func (b *Binstruct) AddStruct(child *Binstruct) error {
	if _, exists := b.byName[child.Name]; exists {
		return fmt.Errorf("binstruct %q: duplicate field name %q", b.Name, child.Name)
	}
	b.nodes = append(b.nodes, node{sub: child})
	for name, f := range child.byName {
		b.byName[name] = f
	}
	return nil
}

// Group declares a named group of field names that the fuzzer should
// treat as a cartesian-product unit. Every name must resolve to an
// existing field; otherwise construction fails with ErrUnknownField.
func (b *Binstruct) Group(groupName string, fieldNames ...string) error {
	for _, n := range fieldNames {
		if _, ok := b.byName[n]; !ok {
			return fmt.Errorf("binstruct %q: group %q: %w: %q", b.Name, groupName, ErrUnknownField, n)
		}
	}
	b.groups[groupName] = fieldNames
	return nil
}

// Groups returns the group-name -> field-names mapping.
func (b *Binstruct) Groups() map[string][]string {
	return b.groups
}

// Field looks up a field by name anywhere in the tree.
func (b *Binstruct) Field(name string) (*Field, error) {
	f, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	return f, nil
}

// Each yields every direct child: fields at this level, and descending
// exactly one level into bitfield containers (but not into ordinary
// nested structs).
func (b *Binstruct) Each(yield func(*Field) bool) {
	for _, n := range b.nodes {
		if n.field != nil {
			if !yield(n.field) {
				return
			}
			continue
		}
		if n.sub.IsBitfield {
			n.sub.Each(yield)
		}
	}
}

// DeepEach yields every leaf field across all nesting levels.
func (b *Binstruct) DeepEach(yield func(*Field) bool) {
	for _, n := range b.nodes {
		if n.field != nil {
			if !yield(n.field) {
				return
			}
			continue
		}
		n.sub.DeepEach(yield)
	}
}

// Flatten returns the list of all leaf fields in declaration order.
func (b *Binstruct) Flatten() []*Field {
	var out []*Field
	b.DeepEach(func(f *Field) bool {
		out = append(out, f)
		return true
	})
	return out
}

// Replace substitutes one node (matched by name) for another anywhere
// in the tree, preserving the name-to-reference mapping for every other
// field.
func (b *Binstruct) Replace(oldName string, newField *Field) error {
	for i, n := range b.nodes {
		if n.field != nil && n.field.Name == oldName {
			b.nodes[i] = node{field: newField}
			delete(b.byName, oldName)
			b.byName[newField.Name] = newField
			return nil
		}
		if n.sub != nil {
			if n.sub.Name == oldName {
				continue // structural replace of a whole substruct is not a field replace
			}
			if err := n.sub.Replace(oldName, newField); err == nil {
				b.byName[newField.Name] = newField
				delete(b.byName, oldName)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %q", ErrNoSuchField, oldName)
}

// Encode concatenates field bitstrings in declaration order, applying
// little-endian bitfield byte-swaps, and pads to a byte boundary on the
// right with zeros.
func (b *Binstruct) Encode() []byte {
	return packBits(b.bitstring())
}

// bitstring assembles the structure's full bit content, recursively
// handling bitfield byte-swap containers.
func (b *Binstruct) bitstring() []byte {
	var bits []byte
	for _, n := range b.nodes {
		if n.field != nil {
			bits = append(bits, n.field.Bitstring...)
			continue
		}
		child := n.sub.bitstring()
		if n.sub.IsBitfield && n.sub.Endian == LittleEndian {
			child = swapByteOrder(child)
		}
		bits = append(bits, child...)
	}
	return bits
}

// BitLength returns the total number of content bits across all leaves,
// before byte-boundary padding.
func (b *Binstruct) BitLength() int {
	return len(b.bitstring())
}

// Decode re-populates the structure's fields from packed bytes, in
// declaration order, consuming exactly BitLength() bits (plus right-hand
// padding to the next byte boundary that the caller must have supplied
// for a round trip to succeed on byte-aligned structures).
func (b *Binstruct) Decode(data []byte) error {
	bits := unpackBits(data, len(data)*8)
	_, err := b.decodeFrom(bits)
	return err
}

func (b *Binstruct) decodeFrom(bits []byte) ([]byte, error) {
	for _, n := range b.nodes {
		if n.field != nil {
			if len(bits) < n.field.LengthBits {
				return nil, fmt.Errorf("binstruct %q: decode: insufficient bits for field %q", b.Name, n.field.Name)
			}
			raw := bits[:n.field.LengthBits]
			bits = bits[n.field.LengthBits:]
			if err := n.field.SetRaw(append([]byte(nil), raw...)); err != nil {
				return nil, err
			}
			continue
		}
		childLen := n.sub.BitLength()
		if len(bits) < childLen {
			return nil, fmt.Errorf("binstruct %q: decode: insufficient bits for struct %q", b.Name, n.sub.Name)
		}
		raw := bits[:childLen]
		bits = bits[childLen:]
		if n.sub.IsBitfield && n.sub.Endian == LittleEndian {
			raw = swapByteOrder(raw)
		}
		if _, err := n.sub.decodeFrom(raw); err != nil {
			return nil, err
		}
	}
	return bits, nil
}

// Clone deep-copies the structure, including all field values, while
// preserving group declarations and the name->field mapping.
func (b *Binstruct) Clone() *Binstruct {
	cp := NewBinstruct(b.Name, b.Endian)
	cp.IsBitfield = b.IsBitfield
	for g, names := range b.groups {
		cp.groups[g] = append([]string(nil), names...)
	}
	for _, n := range b.nodes {
		if n.field != nil {
			_ = cp.AddField(n.field.Clone())
		} else {
			_ = cp.AddStruct(n.sub.Clone())
		}
	}
	return cp
}
