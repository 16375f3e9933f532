package roomreg

import "math"

// filterBlock is one 64-byte cache line of filter bits.
type filterBlock [8]uint64

// blockBloomFilter records which user ids have joined a room. Every probe
// for one id lands in a single block, so a lookup touches one cache line.
//
// It is not safe for concurrent use; a room's filter is only touched while
// the room's slot is held.
type blockBloomFilter struct {
	blocks []filterBlock
	mask   uint64 // len(blocks) - 1
	k      int    // bits set per id
}

// newBlockBloomFilter sizes a filter for capacity ids at the given false
// positive rate. The filter keeps answering correctly past capacity, with a
// rising false positive rate.
func newBlockBloomFilter(capacity int, fpRate float64) *blockBloomFilter {
	if capacity < 1 {
		capacity = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = defaultFilterFPRate
	}

	ln2 := math.Log(2)
	const bitsPerBlock = 512

	// m = -n * ln(p) / ln(2)^2
	bits := float64(capacity) * -math.Log(fpRate) / (ln2 * ln2)
	numBlocks := max(int((bits+bitsPerBlock-1)/bitsPerBlock), 1)

	k := min(max(int(math.Ceil(-math.Log(fpRate)/ln2)), 1), 16)

	// At least k bits per id inside the blocks.
	if minBlocks := int(math.Ceil(float64(capacity*k) / bitsPerBlock)); numBlocks < minBlocks {
		numBlocks = minBlocks
	}
	numBlocks = int(nextPowerOf2(uint64(numBlocks)))

	return &blockBloomFilter{
		blocks: make([]filterBlock, numBlocks),
		mask:   uint64(numBlocks - 1),
		k:      k,
	}
}

// probe yields the k (word, bit) positions of h inside its block.
func (b *blockBloomFilter) probe(h uint64, fn func(word, bit uint64) bool) {
	lo := h & 0xFFFFFFFF
	rot := (h >> 32) | (h << 32)
	for i := range b.k {
		pos := (lo + uint64(i)*rot + uint64(i*i)*0x9e3779b1) & 511
		if !fn(pos>>6, pos&63) {
			return
		}
	}
}

func (b *blockBloomFilter) block(h uint64) *filterBlock {
	return &b.blocks[(h>>32)&b.mask]
}

// Add records the hash of a user id.
func (b *blockBloomFilter) Add(h uint64) {
	blk := b.block(h)
	b.probe(h, func(word, bit uint64) bool {
		blk[word] |= 1 << bit
		return true
	})
}

// Contains reports whether h may have been added. False means never added.
func (b *blockBloomFilter) Contains(h uint64) bool {
	blk := b.block(h)
	found := true
	b.probe(h, func(word, bit uint64) bool {
		if blk[word]&(1<<bit) == 0 {
			found = false
		}
		return found
	})
	return found
}
