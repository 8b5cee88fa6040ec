package heap

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Snapshot writes the heap's interner — page count, then each page's
// length and raw bytes, then the string count and each string's
// (addr, length) span — to out. Typed-slab contents are persisted by
// whichever component owns them (buildapi.SaveCache writes this snapshot
// followed by graph.Graph.Serialize), since the heap package itself does
// not know the domain record shapes.
func (h *Heap) Snapshot(out io.Writer) error {
	return h.Strings.snapshotTo(out)
}

// Restore is the inverse of Snapshot: after it returns, every InternedString
// index handed out before the snapshot resolves to an equal string.
func Restore(in io.Reader) (*Heap, error) {
	strings, err := restoreInternerFrom(in)
	if err != nil {
		return nil, err
	}
	return &Heap{Strings: strings}, nil
}

func (in *Interner) snapshotTo(out io.Writer) error {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if err := in.pages.write(out); err != nil {
		return fmt.Errorf("writing interner pages: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(in.index))); err != nil {
		return fmt.Errorf("writing interner string count: %w", err)
	}
	for _, span := range in.index {
		if err := binary.Write(out, binary.LittleEndian, span.addr); err != nil {
			return err
		}
		if err := binary.Write(out, binary.LittleEndian, span.len); err != nil {
			return err
		}
	}
	return nil
}

// restoreInternerFrom rebuilds an Interner whose arena pages are byte-for-
// byte identical to the snapshotted ones, so every previously issued
// InternedString address still resolves to the same bytes. New strings
// interned after restore start on a fresh arena page: address stability
// for pre-snapshot strings does not require resuming the bump cursor
// mid-page, only that existing bytes remain in place.
func restoreInternerFrom(in io.Reader) (*Interner, error) {
	pages, err := readPageAllocator(in)
	if err != nil {
		return nil, fmt.Errorf("reading interner pages: %w", err)
	}

	var count uint32
	if err := binary.Read(in, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading interner string count: %w", err)
	}

	spans := make([]stringSpan, count)
	for i := range spans {
		if err := binary.Read(in, binary.LittleEndian, &spans[i].addr); err != nil {
			return nil, fmt.Errorf("reading span %d: %w", i, err)
		}
		if err := binary.Read(in, binary.LittleEndian, &spans[i].len); err != nil {
			return nil, fmt.Errorf("reading span %d: %w", i, err)
		}
	}

	out := &Interner{
		pages: pages,
		arena: newArena(pages),
		index: spans,
	}
	for i := range out.shards {
		out.shards[i] = &internerShard{m: make(map[string]InternedString)}
	}
	for idx, span := range spans {
		s := string(pages.bytes(span.addr, int(span.len)))
		shard := out.shards[shardFor(s)]
		shard.m[s] = InternedString(idx + 1)
	}
	return out, nil
}
