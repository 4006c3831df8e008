package cache

// FlatBacking is a trivial BackingStore: it does not model real memory
// contents (the core never computes register or memory values, only
// identities and latencies), so reads return zeroed data and writes are
// discarded. It exists so Cache always has a non-nil backing store to
// drive its miss/writeback latency bookkeeping.
type FlatBacking struct{}

// NewFlatBacking returns a FlatBacking.
func NewFlatBacking() *FlatBacking {
	return &FlatBacking{}
}

// Read returns a zeroed buffer of the requested size.
func (f *FlatBacking) Read(addr uint64, size int) []byte {
	return make([]byte, size)
}

// Write discards data.
func (f *FlatBacking) Write(addr uint64, data []byte) {}
