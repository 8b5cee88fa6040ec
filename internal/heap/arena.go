package heap

// arena is a bump allocator for byte ranges that are written once and never
// individually freed — the interner's string bytes are the only current
// user. It owns no pages itself; it bumps a cursor within pages borrowed
// from a pageAllocator.
type arena struct {
	pages  *pageAllocator
	page   uint32
	cursor uint32
	has    bool
}

func newArena(pages *pageAllocator) *arena {
	return &arena{pages: pages}
}

// alloc reserves size bytes, 8-byte aligned, and returns the address of the
// first byte. On overflow of the current page it allocates a new one.
func (a *arena) alloc(size uint32) uint32 {
	size = (size + 7) &^ 7
	if !a.has || a.cursor >= pageSize || a.cursor+size > pageSize {
		// The very first page starts 8 bytes in, so no allocation packs to
		// address 0 (page 0, offset 0), the reserved null address.
		reserve := uint32(0)
		if a.pages.pageCount() == 0 {
			reserve = 8
		}
		a.page = a.pages.allocPage(int(reserve + size))
		a.cursor = reserve
		a.has = true
	}
	addr := packAddr(a.page, a.cursor)
	a.cursor += size
	return addr
}
