package edges

// bitSet is the keep mask over a kernel's candidate list. It is pooled and
// reused across calls, so it only ever grows.
type bitSet struct {
	buckets []uint64
}

func newBitSet(initialCapacity uint32) *bitSet {
	numBuckets := (initialCapacity >> 6) + 1 // >> 6 == / 64
	return &bitSet{
		buckets: make([]uint64, numBuckets),
	}
}

func (bs *bitSet) grow(n uint32) {
	neededBuckets := (n >> 6) + 1
	if uint32(len(bs.buckets)) < neededBuckets {
		newBuckets := make([]uint64, neededBuckets)
		copy(newBuckets, bs.buckets)
		bs.buckets = newBuckets
	}
}

func (bs *bitSet) add(n uint32) {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		bs.grow(n)
	}
	// n & 63 == n % 64
	bs.buckets[bucketIndex] |= 1 << (n & 63)
}

func (bs *bitSet) has(n uint32) bool {
	bucketIndex := n >> 6
	if bucketIndex >= uint32(len(bs.buckets)) {
		return false
	}
	return bs.buckets[bucketIndex]&(1<<(n&63)) != 0
}

// reset clears the first n bits' buckets and makes room for n bits.
func (bs *bitSet) reset(n uint32) {
	bs.grow(n)
	limit := (n >> 6) + 1
	for i := uint32(0); i < limit; i++ {
		bs.buckets[i] = 0
	}
}
