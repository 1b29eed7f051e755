package reconcile

// maxEntries bounds the bitmap regardless of the id range in the store.
// 64M entries is 8 MiB of words, comfortably above any realistic week of
// schedule ids.
const maxEntries = 64 << 20

// bitmap tracks live schedule ids keyed by id minus base. Ids beyond the
// capacity are ignored rather than grown into; they surface as never-set.
type bitmap struct {
	base  int64
	words []uint64
}

func newBitmap(lo, hi int64) *bitmap {
	n := hi - lo + 1
	if n < 1 {
		n = 1
	}
	if n > maxEntries {
		n = maxEntries
	}
	return &bitmap{base: lo, words: make([]uint64, (n+63)/64)}
}

func (b *bitmap) index(id int64) (int64, bool) {
	i := id - b.base
	if i < 0 || i >= int64(len(b.words))*64 {
		return 0, false
	}
	return i, true
}

func (b *bitmap) set(id int64) {
	if i, ok := b.index(id); ok {
		b.words[i/64] |= 1 << uint(i%64)
	}
}

func (b *bitmap) clear(id int64) {
	if i, ok := b.index(id); ok {
		b.words[i/64] &^= 1 << uint(i%64)
	}
}

func (b *bitmap) test(id int64) bool {
	i, ok := b.index(id)
	return ok && b.words[i/64]&(1<<uint(i%64)) != 0
}

// each calls fn for every set bit in ascending id order.
func (b *bitmap) each(fn func(int64)) {
	for w, word := range b.words {
		if word == 0 {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			if word&(1<<uint(bit)) != 0 {
				fn(b.base + int64(w*64+bit))
			}
		}
	}
}
