package heap

// chunkSize is the number of records held per chunk. Chunks are appended to
// but never reallocated once created, so a *T handed out by Get remains
// valid for the life of the heap even as the slab grows — matching the
// "pages are never moved" heap invariant at the typed-record level.
const chunkSize = 1024

// Slab is a typed, individually-freeable allocator. Allocation first-fits
// the free list (LIFO reuse of the most recently freed slot); once the free
// list is empty it bumps a monotonic counter. Addresses are 1-based so that
// 0 remains reserved for "none", matching the paged heap's addressing
// convention.
type Slab[T any] struct {
	chunks [][]T
	count  uint32
	free   []uint32
}

// NewSlab constructs an empty typed slab.
func NewSlab[T any]() *Slab[T] {
	return &Slab[T]{}
}

func (s *Slab[T]) ensureChunk(page int) {
	for len(s.chunks) <= page {
		s.chunks = append(s.chunks, make([]T, chunkSize))
	}
}

// Alloc reserves one slot and returns its address. The record at that
// address is zero-valued until the caller populates it.
func (s *Slab[T]) Alloc() uint32 {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		idx = s.count
		s.count++
	}
	s.ensureChunk(int(idx) / chunkSize)
	return idx + 1
}

// Get returns a pointer to the record at addr, or nil for the null address.
func (s *Slab[T]) Get(addr uint32) *T {
	if addr == 0 {
		return nil
	}
	idx := addr - 1
	return &s.chunks[int(idx)/chunkSize][int(idx)%chunkSize]
}

// Free returns addr's slot to the free list. The slot's contents are reset
// to the zero value so a leaked address reads back emptily rather than
// stale data from the next tenant.
func (s *Slab[T]) Free(addr uint32) {
	if addr == 0 {
		return
	}
	idx := addr - 1
	var zero T
	s.chunks[int(idx)/chunkSize][int(idx)%chunkSize] = zero
	s.free = append(s.free, idx)
}

// Len reports how many slots have ever been allocated (including currently
// free ones); it is the upper bound on live addresses.
func (s *Slab[T]) Len() uint32 {
	return s.count
}

// snapshot captures enough state to rebuild an equivalent slab: every slot
// from 0 up to count (live or free) plus the free list, so addresses issued
// before the snapshot resolve to equal values after restore.
type slabSnapshot[T any] struct {
	Records []T
	Free    []uint32
}

func (s *Slab[T]) snapshot() slabSnapshot[T] {
	records := make([]T, s.count)
	for i := uint32(0); i < s.count; i++ {
		records[i] = s.chunks[int(i)/chunkSize][int(i)%chunkSize]
	}
	free := make([]uint32, len(s.free))
	copy(free, s.free)
	return slabSnapshot[T]{Records: records, Free: free}
}

func restoreSlab[T any](snap slabSnapshot[T]) *Slab[T] {
	s := NewSlab[T]()
	for i, rec := range snap.Records {
		s.ensureChunk(i / chunkSize)
		s.chunks[i/chunkSize][i%chunkSize] = rec
	}
	s.count = uint32(len(snap.Records))
	s.free = append([]uint32(nil), snap.Free...)
	return s
}
