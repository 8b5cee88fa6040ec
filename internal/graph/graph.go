package graph

import "github.com/please-build/js-build-core/internal/heap"

// NodeKind tags the four node shapes a Graph's DAG may contain. Edges are
// only ever added between adjacent kinds in the pattern Root -> Entry ->
// Dependency -> Asset -> Dependency -> Asset -> ...
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeEntry
	NodeDependency
	NodeAsset
)

type node struct {
	kind      NodeKind
	entryPath string // set only for NodeEntry
	assetIdx  int    // index into Graph.assets, set only for NodeAsset
	depIdx    int    // index into Graph.dependencies, set only for NodeDependency
}

// DependencyState tracks where a dependency sits in the resolve/defer
// lifecycle.
type DependencyState int

const (
	StateNew DependencyState = iota
	StateDeferred
	StateExcluded
	StateResolved
)

type assetEntry struct {
	asset            Asset
	requestedSymbols map[heap.InternedString]struct{}
}

type dependencyEntry struct {
	dependency       Dependency
	requestedSymbols map[heap.InternedString]struct{}
	state            DependencyState
}

// Graph is the typed DAG described in §4.F: nodes addressed by a dense
// NodeID, side tables keyed by the same id space as assets/dependencies,
// and adjacency tracked as plain out/in edge lists. The side tables
// themselves live in heap.Vector[T]s (backed by heap.Slab[T]) rather than
// bare Go slices: assets, dependencies and environments are never freed
// once interned, so a Vector's append-only push/get/set is exactly the
// heap-addressed storage §9 describes, without needing the Slab's free
// list (nothing here is ever individually released back to it).
type Graph struct {
	nodes []node
	out   [][]int
	in    [][]int
	root  int

	assets       *heap.Vector[assetEntry]
	dependencies *heap.Vector[dependencyEntry]

	envs       *heap.Vector[Environment]
	envKeys    map[[32]byte]EnvironmentID
	assetByKey map[[32]byte]int
	depByKey   map[[32]byte]int

	strings *heap.Interner
	star    heap.InternedString
}

// NodeID indexes Graph.nodes.
type NodeID int

// New constructs an empty graph with its distinguished Root node. strings
// is the same interner every Asset/Dependency/Symbol field on this
// graph's records was interned through; PropagateRequestedSymbols relies
// on it to recognize the "*" wildcard sentinel.
func New(strings *heap.Interner) *Graph {
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
	g.root = g.addNode(node{kind: NodeRoot})
	return g
}

func (g *Graph) addNode(n node) int {
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return idx
}

func (g *Graph) addEdge(from, to int) {
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
}

// Root returns the graph's root node id.
func (g *Graph) Root() NodeID { return NodeID(g.root) }

// Star returns the interned "*" wildcard symbol, the value a Symbol's
// Local field carries for an `export * from` re-export.
func (g *Graph) Star() heap.InternedString { return g.star }

// Intern interns s through the graph's backing string interner. Callers
// building Asset/Dependency/Symbol records for this graph should always
// go through this method (or the interner directly) so symbol comparison
// during propagation is consistent.
func (g *Graph) Intern(s string) heap.InternedString { return g.strings.Intern(s) }

// Lookup returns the string an earlier Intern call produced s for.
func (g *Graph) Lookup(s heap.InternedString) string { return g.strings.Lookup(s) }

// Strings returns the graph's backing interner, for callers that need to
// snapshot it alongside the graph (see buildapi.SaveCache).
func (g *Graph) Strings() *heap.Interner { return g.strings }

// InternEnvironment deduplicates e by structural hash, returning its
// stable EnvironmentID.
func (g *Graph) InternEnvironment(e Environment) EnvironmentID {
	key := environmentKey(e)
	if id, ok := g.envKeys[key]; ok {
		return id
	}
	idx := g.envs.Push(e)
	id := EnvironmentID(idx + 1)
	g.envKeys[key] = id
	return id
}

// Environment looks up a previously interned Environment by id.
func (g *Graph) Environment(id EnvironmentID) (Environment, bool) {
	if id == 0 || int(id) > g.envs.Len() {
		return Environment{}, false
	}
	return g.envs.Get(int(id) - 1), true
}

// AddEntry adds an Entry node as a child of Root for the given path and
// returns its id. Entries are never deduplicated: a caller building the
// same entry path twice gets two distinct graph nodes, matching
// original_source's treatment of entries as plain build inputs.
func (g *Graph) AddEntry(path string) NodeID {
	idx := g.addNode(node{kind: NodeEntry, entryPath: path})
	g.addEdge(g.root, idx)
	return NodeID(idx)
}

// AddDependency registers dep (deduplicated per invariant 2) as a child
// of parent (an Entry or Asset node) with the given initially requested
// symbol set, returning the dependency's node id.
func (g *Graph) AddDependency(parent NodeID, dep Dependency, requestedSymbols []heap.InternedString) NodeID {
	key := dependencyKey(dep)
	if existingIdx, ok := g.depByKey[key]; ok {
		nodeIdx := g.nodeForDependency(existingIdx)
		g.addEdge(int(parent), nodeIdx)
		existing := g.dependencies.Get(existingIdx)
		g.mergeRequested(existing.requestedSymbols, requestedSymbols)
		return NodeID(nodeIdx)
	}
	dep.ID = heap.InternedString(keyToID(key))
	set := newSymbolSet(requestedSymbols)
	depIdx := g.dependencies.Push(dependencyEntry{dependency: dep, requestedSymbols: set, state: StateNew})
	g.depByKey[key] = depIdx
	idx := g.addNode(node{kind: NodeDependency, depIdx: depIdx})
	g.addEdge(int(parent), idx)
	return NodeID(idx)
}

// nodeForDependency finds (or, in well-formed graphs, always finds) the
// single graph node wrapping dependencies[idx]. Dependencies are
// deduplicated by content, but each still gets exactly one graph node,
// reused across every parent edge pointing at it.
func (g *Graph) nodeForDependency(idx int) int {
	for i, n := range g.nodes {
		if n.kind == NodeDependency && n.depIdx == idx {
			return i
		}
	}
	panic("graph: dependency index has no backing node")
}

// AddAsset registers asset (deduplicated per invariant 3) as the resolved
// target of dependency node depNode, adding the Dependency -> Asset edge
// and marking the dependency Resolved.
func (g *Graph) AddAsset(depNode NodeID, asset Asset) NodeID {
	key := assetKey(asset)
	var assetIdx int
	if existing, ok := g.assetByKey[key]; ok {
		assetIdx = existing
	} else {
		asset.ID = heap.InternedString(keyToID(key))
		assetIdx = g.assets.Push(assetEntry{asset: asset, requestedSymbols: make(map[heap.InternedString]struct{})})
		g.assetByKey[key] = assetIdx
	}
	assetNodeIdx := g.findOrCreateAssetNode(assetIdx)
	g.addEdge(int(depNode), assetNodeIdx)
	g.setDependencyState(depNode, StateResolved)
	return NodeID(assetNodeIdx)
}

func (g *Graph) findOrCreateAssetNode(assetIdx int) int {
	for i, n := range g.nodes {
		if n.kind == NodeAsset && n.assetIdx == assetIdx {
			return i
		}
	}
	return g.addNode(node{kind: NodeAsset, assetIdx: assetIdx})
}

// AddAssetGroup records a dependency as deliberately deferred rather than
// resolved to a concrete asset, the state an asset-group request leaves
// behind for side-effect-free, as-yet-unused imports.
func (g *Graph) AddAssetGroup(depNode NodeID) {
	g.setDependencyState(depNode, StateDeferred)
}

func (g *Graph) setDependencyState(depNode NodeID, state DependencyState) {
	n := g.nodes[depNode]
	if n.kind != NodeDependency {
		panic("graph: setDependencyState on non-dependency node")
	}
	entry := g.dependencies.Get(n.depIdx)
	entry.state = state
	g.dependencies.Set(n.depIdx, entry)
}

// EntryAssets returns the Asset node ids directly reachable through every
// Entry node's dependency chain (one hop: Entry -> Dependency -> Asset).
func (g *Graph) EntryAssets() []NodeID {
	var out []NodeID
	for _, entryIdx := range g.out[g.root] {
		for _, depIdx := range g.out[entryIdx] {
			for _, assetIdx := range g.out[depIdx] {
				if g.nodes[assetIdx].kind == NodeAsset {
					out = append(out, NodeID(assetIdx))
				}
			}
		}
	}
	return out
}

// Assets returns every asset the graph has recorded, in no particular
// order. Used by callers that need to enumerate every source file a build
// touched (for example, registering watch paths) rather than walk the DAG.
func (g *Graph) Assets() []Asset {
	out := make([]Asset, 0, g.assets.Len())
	for i := 0; i < g.assets.Len(); i++ {
		out = append(out, g.assets.Get(i).asset)
	}
	return out
}

// IncomingDependencies returns the Dependency node ids with an edge into
// asset.
func (g *Graph) IncomingDependencies(asset NodeID) []NodeID {
	var out []NodeID
	for _, from := range g.in[asset] {
		if g.nodes[from].kind == NodeDependency {
			out = append(out, NodeID(from))
		}
	}
	return out
}

// Asset returns the Asset payload for an Asset node. The returned pointer
// addresses a copy taken out of the backing vector, not live storage;
// callers read it, they never write through it to mutate the graph.
func (g *Graph) Asset(n NodeID) *Asset {
	entry := g.assets.Get(g.nodes[n].assetIdx)
	return &entry.asset
}

// Dependency returns the Dependency payload for a Dependency node. Like
// Asset, the returned pointer addresses a copy; mutate the graph through
// AddDependency/setDependencyState instead.
func (g *Graph) Dependency(n NodeID) *Dependency {
	entry := g.dependencies.Get(g.nodes[n].depIdx)
	return &entry.dependency
}

// DependencyStateOf returns a dependency node's current lifecycle state.
func (g *Graph) DependencyStateOf(n NodeID) DependencyState {
	return g.dependencies.Get(g.nodes[n].depIdx).state
}

// RequestedSymbolsEmpty reports whether no symbol has ever been requested
// of a dependency node, the condition an AssetGraphRequest checks (along
// with side-effect-free-ness) before deferring resolution of a
// known-pure, unused import.
func (g *Graph) RequestedSymbolsEmpty(n NodeID) bool {
	return len(g.dependencies.Get(g.nodes[n].depIdx).requestedSymbols) == 0
}

// ExcludeDependency marks a dependency node permanently excluded from the
// graph (a resolver deliberately opted it out, e.g. a marked-external
// package).
func (g *Graph) ExcludeDependency(n NodeID) {
	g.setDependencyState(n, StateExcluded)
}

func newSymbolSet(symbols []heap.InternedString) map[heap.InternedString]struct{} {
	set := make(map[heap.InternedString]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

func (g *Graph) mergeRequested(into map[heap.InternedString]struct{}, symbols []heap.InternedString) {
	for _, s := range symbols {
		into[s] = struct{}{}
	}
}
