package buildapi

import (
	"fmt"
	"io"

	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/heap"
)

// SaveCache writes the graph's backing interner snapshot followed by the
// asset graph's node/edge snapshot to w, so a later LoadCache call can
// rebuild the graph's nodes, edges, environments and deferred bits
// without re-running any request. Requested-symbol sets are not stored,
// and dependencies that were not deferred are restored in the New state.
// The
// concatenation order matters: the heap must come first, since the graph's
// snapshot stores bare heap.InternedString indices that only resolve
// against the interner they were produced from.
func SaveCache(w io.Writer, g *graph.Graph) error {
	h := &heap.Heap{Strings: g.Strings()}
	if err := h.Snapshot(w); err != nil {
		return fmt.Errorf("buildapi: snapshot heap: %w", err)
	}
	if err := g.Serialize(w); err != nil {
		return fmt.Errorf("buildapi: serialize graph: %w", err)
	}
	return nil
}

// LoadCache is SaveCache's inverse: it restores the heap first so the
// graph can be deserialized against its interner.
func LoadCache(r io.Reader) (*graph.Graph, error) {
	h, err := heap.Restore(r)
	if err != nil {
		return nil, fmt.Errorf("buildapi: restore heap: %w", err)
	}
	g, err := graph.Deserialize(r, h.Strings)
	if err != nil {
		return nil, fmt.Errorf("buildapi: deserialize graph: %w", err)
	}
	return g, nil
}
