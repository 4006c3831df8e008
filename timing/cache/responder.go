package cache

// Responder adapts a synchronous Cache into the asynchronous
// request/credit protocol the LSU and VLSU speak (TryRequest/Poll),
// modeling one outstanding access at a time with its latency paid off
// cycle by cycle.
type Responder struct {
	cache *Cache

	busy        bool
	cyclesLeft  uint64
	resultHit   bool
	resultReady bool
}

// NewResponder wraps cache as an async MemResponder.
func NewResponder(cache *Cache) *Responder {
	return &Responder{cache: cache}
}

// TryRequest issues a read at addr/size if no access is outstanding.
func (r *Responder) TryRequest(addr uint64, size int) bool {
	if r.busy {
		return false
	}
	result := r.cache.Read(addr, size)
	r.busy = true
	r.resultHit = result.Hit
	r.resultReady = false
	r.cyclesLeft = result.Latency
	return true
}

// Tick pays down the outstanding access's latency by one cycle.
func (r *Responder) Tick() {
	if !r.busy || r.resultReady {
		return
	}
	if r.cyclesLeft == 0 {
		r.resultReady = true
		return
	}
	r.cyclesLeft--
	if r.cyclesLeft == 0 {
		r.resultReady = true
	}
}

// Poll returns the outstanding access's result once ready, freeing the
// responder for its next request.
func (r *Responder) Poll() (hit bool, latency uint64, ready bool) {
	if !r.busy || !r.resultReady {
		return false, 0, false
	}
	hit = r.resultHit
	r.busy = false
	r.resultReady = false
	return hit, 1, true
}
