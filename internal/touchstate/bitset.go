package touchstate

// KeyBitset is a fixed-capacity bitset over key indexes. One near-key and
// one search-key bitset exist per sampled point.
type KeyBitset struct {
	words []uint64
}

// NewKeyBitset returns an empty bitset with capacity for keyCount keys.
func NewKeyBitset(keyCount int) KeyBitset {
	return KeyBitset{words: make([]uint64, (keyCount+63)/64)}
}

// Reset clears every bit, keeping capacity.
func (b *KeyBitset) Reset() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// Set marks keyIndex as present.
func (b *KeyBitset) Set(keyIndex int) {
	b.words[keyIndex/64] |= 1 << (uint(keyIndex) % 64)
}

// Test reports whether keyIndex is present. Out-of-capacity indexes read as
// absent.
func (b *KeyBitset) Test(keyIndex int) bool {
	w := keyIndex / 64
	if keyIndex < 0 || w >= len(b.words) {
		return false
	}
	return b.words[w]&(1<<(uint(keyIndex)%64)) != 0
}

// Or merges other into b. Both bitsets must share a capacity.
func (b *KeyBitset) Or(other KeyBitset) {
	for i := range b.words {
		b.words[i] |= other.words[i]
	}
}

// ContainsAll reports whether every bit of other is also set in b.
func (b *KeyBitset) ContainsAll(other KeyBitset) bool {
	for i := range b.words {
		if other.words[i]&^b.words[i] != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of set bits.
func (b *KeyBitset) Count() int {
	n := 0
	for _, w := range b.words {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}
