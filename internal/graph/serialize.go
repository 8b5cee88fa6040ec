package graph

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/please-build/js-build-core/internal/heap"
)

// serializedNode is the tagged-union wire shape for one graph node,
// matching original_source's SerializedAssetGraphNode: Root and Entry
// carry no payload (Entry's path lives on the node itself here), Asset
// carries the full Asset value, and Dependency carries both the
// Dependency value and a HasDeferred bit recording whether it was left
// deferred rather than resolved.
type serializedNode struct {
	Kind        NodeKind
	EntryPath   string
	Asset       *Asset
	Dependency  *Dependency
	HasDeferred bool
}

type serializedGraph struct {
	Nodes []serializedNode
	Edges [][2]int
	Envs  []Environment
}

// Serialize writes the graph's nodes, edges and interned environments.
// Side tables (assets/dependencies slices, dedup maps) are reconstructed
// from the node list on restore rather than persisted directly.
func (g *Graph) Serialize(w io.Writer) error {
	sg := serializedGraph{Envs: g.envs.Slice()}
	for _, n := range g.nodes {
		sn := serializedNode{Kind: n.kind}
		switch n.kind {
		case NodeEntry:
			sn.EntryPath = n.entryPath
		case NodeAsset:
			a := g.assets.Get(n.assetIdx).asset
			sn.Asset = &a
		case NodeDependency:
			entry := g.dependencies.Get(n.depIdx)
			d := entry.dependency
			sn.Dependency = &d
			sn.HasDeferred = entry.state == StateDeferred
		}
		sg.Nodes = append(sg.Nodes, sn)
	}
	for from, tos := range g.out {
		for _, to := range tos {
			sg.Edges = append(sg.Edges, [2]int{from, to})
		}
	}
	if err := gob.NewEncoder(w).Encode(sg); err != nil {
		return fmt.Errorf("graph: serialize: %w", err)
	}
	return nil
}

// Deserialize rebuilds a Graph from a stream written by Serialize. strings
// must be the same interner (or one restored from the same heap snapshot)
// used when the graph was built, so InternedString values compare
// correctly after restore.
func Deserialize(r io.Reader, strings *heap.Interner) (*Graph, error) {
	var sg serializedGraph
	if err := gob.NewDecoder(r).Decode(&sg); err != nil {
		return nil, fmt.Errorf("graph: deserialize: %w", err)
	}

	g := &Graph{
		assets:       heap.NewVector[assetEntry](),
		dependencies: heap.NewVector[dependencyEntry](),
		envs:         heap.NewVector[Environment](),
		envKeys:      make(map[[32]byte]EnvironmentID),
		assetByKey:   make(map[[32]byte]int),
		depByKey:     make(map[[32]byte]int),
		strings:      strings,
		star:         strings.Intern("*"),
	}
	for _, e := range sg.Envs {
		idx := g.envs.Push(e)
		g.envKeys[environmentKey(e)] = EnvironmentID(idx + 1)
	}

	for _, sn := range sg.Nodes {
		switch sn.Kind {
		case NodeRoot:
			g.root = g.addNode(node{kind: NodeRoot})
		case NodeEntry:
			g.addNode(node{kind: NodeEntry, entryPath: sn.EntryPath})
		case NodeAsset:
			idx := g.assets.Push(assetEntry{asset: *sn.Asset, requestedSymbols: make(map[heap.InternedString]struct{})})
			g.assetByKey[assetKey(*sn.Asset)] = idx
			g.addNode(node{kind: NodeAsset, assetIdx: idx})
		case NodeDependency:
			state := StateNew
			if sn.HasDeferred {
				state = StateDeferred
			}
			idx := g.dependencies.Push(dependencyEntry{
				dependency:       *sn.Dependency,
				requestedSymbols: make(map[heap.InternedString]struct{}),
				state:            state,
			})
			g.depByKey[dependencyKey(*sn.Dependency)] = idx
			g.addNode(node{kind: NodeDependency, depIdx: idx})
		}
	}

	for _, edge := range sg.Edges {
		g.addEdge(edge[0], edge[1])
	}

	return g, nil
}
