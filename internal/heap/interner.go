package heap

import (
	"hash/fnv"
	"sync"
)

// internerShards is the number of lock shards guarding the reverse
// string-to-index map. The append-only forward index (in.index) is guarded
// by its own lock since it is written far less often than it is read once
// a build has interned its common specifiers and symbol names.
const internerShards = 16

type internerShard struct {
	mu sync.Mutex
	m  map[string]InternedString
}

// InternedString is a 1-based, non-zero index into the interner; 0 is
// reserved for "no string".
type InternedString uint32

// stringSpan locates one interned string's bytes within the arena.
type stringSpan struct {
	addr uint32
	len  uint32
}

// Interner deduplicates strings process-wide. Interned strings are never
// reference-counted or evicted: they live for the life of the interner.
// Bytes are bump-allocated into shared arena pages rather than kept as
// individual Go string headers, so the whole forward index can be
// snapshotted as a handful of page writes instead of one allocation per
// string.
type Interner struct {
	mu     sync.RWMutex
	pages  *pageAllocator
	arena  *arena
	index  []stringSpan
	shards [internerShards]*internerShard
}

// NewInterner constructs an empty interner.
func NewInterner() *Interner {
	pages := newPageAllocator()
	in := &Interner{
		pages: pages,
		arena: newArena(pages),
	}
	for i := range in.shards {
		in.shards[i] = &internerShard{m: make(map[string]InternedString)}
	}
	return in
}

func shardFor(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32()) % internerShards
}

// Intern returns the existing index for s if already interned, otherwise
// copies its bytes into the arena and returns the new index.
func (in *Interner) Intern(s string) InternedString {
	shard := in.shards[shardFor(s)]
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if idx, ok := shard.m[s]; ok {
		return idx
	}

	in.mu.Lock()
	addr := in.arena.alloc(uint32(len(s)))
	copy(in.pages.bytes(addr, len(s)), s)
	in.index = append(in.index, stringSpan{addr: addr, len: uint32(len(s))})
	idx := InternedString(len(in.index))
	in.mu.Unlock()

	shard.m[s] = idx
	return idx
}

// Lookup resolves an interned index back to its string. It panics on the
// null index or an index never issued by this interner, both of which
// indicate a programming error rather than recoverable input.
func (in *Interner) Lookup(idx InternedString) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	span := in.index[idx-1]
	return string(in.pages.bytes(span.addr, int(span.len)))
}

// Len reports how many distinct strings have been interned.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.index)
}
