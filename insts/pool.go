package insts

import "sync"

// Pool is an arena allocator for InstRecord values, keyed by UniqueID.
// A record stays live, and findable through Lookup, until Free returns
// it to the pool. Neither the ROB nor the flush manager calls Free, so
// records allocated during a core's run are not recycled.
type Pool struct {
	mu   sync.Mutex
	next uint64
	free []*InstRecord
	byID map[uint64]*InstRecord
}

// NewPool returns an empty Pool. startID is the first UniqueID handed out,
// letting callers reserve a low range (e.g. 0) as "no instruction".
func NewPool(startID uint64) *Pool {
	return &Pool{
		next: startID,
		byID: make(map[uint64]*InstRecord),
	}
}

// Alloc returns a fresh InstRecord with a newly assigned UniqueID, reusing
// a freed record's backing memory when available.
func (p *Pool) Alloc() *InstRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var r *InstRecord
	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free = p.free[:n-1]
		r.reset()
	} else {
		r = &InstRecord{}
	}

	r.UniqueID = p.next
	p.next++
	p.byID[r.UniqueID] = r
	return r
}

// Lookup returns the record for the given UniqueID, or nil if it has been
// freed or never existed.
func (p *Pool) Lookup(id uint64) *InstRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byID[id]
}

// Free returns r to the pool. Callers must not dereference r afterward.
func (p *Pool) Free(r *InstRecord) {
	if r == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byID, r.UniqueID)
	p.free = append(p.free, r)
}

// Len returns the number of live (allocated, not-yet-freed) records.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}
