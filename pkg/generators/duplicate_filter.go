package generators

// duplicateWindow caps the recency window DuplicateFilter tracks, per
// the data model ("bounded (<=10 000) recency window").
const duplicateWindow = 10000

// DuplicateFilter suppresses values whose hash has already been seen
// within the bounded recency window, wrapping another []byte generator.
type DuplicateFilter struct {
	src Generator[[]byte]

	seen    map[uint64]struct{}
	order   []uint64
	pending []byte
	have    bool
}

func NewDuplicateFilter(src Generator[[]byte]) *DuplicateFilter {
	return &DuplicateFilter{
		src:  src,
		seen: make(map[uint64]struct{}),
	}
}

func (d *DuplicateFilter) hash(b []byte) uint64 {
	// 64-bit FNV-1a.
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

func (d *DuplicateFilter) remember(h uint64) {
	if _, ok := d.seen[h]; ok {
		return
	}
	d.seen[h] = struct{}{}
	d.order = append(d.order, h)
	if len(d.order) > duplicateWindow {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
}

func (d *DuplicateFilter) fill() {
	for !d.have && d.src.HasNext() {
		v, err := d.src.Next()
		if err != nil {
			return
		}
		h := d.hash(v)
		if _, dup := d.seen[h]; dup {
			continue
		}
		d.remember(h)
		d.pending = v
		d.have = true
	}
}

func (d *DuplicateFilter) HasNext() bool {
	d.fill()
	return d.have
}

func (d *DuplicateFilter) Next() ([]byte, error) {
	if !d.HasNext() {
		return nil, ErrExhausted
	}
	v := d.pending
	d.have = false
	d.pending = nil
	return v, nil
}

func (d *DuplicateFilter) Rewind() {
	d.src.Rewind()
	d.seen = make(map[uint64]struct{})
	d.order = nil
	d.have = false
	d.pending = nil
}
