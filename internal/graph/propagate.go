package graph

import "github.com/please-build/js-build-core/internal/heap"

// OnUndeferred is called for a dependency node whose requested symbols
// changed (or that is still new) but that has no resolved target asset
// yet: the caller should schedule a PathRequest for it.
type OnUndeferred func(dep NodeID, dependency *Dependency)

// PropagateRequestedSymbols is the tree-shaking data-flow step: an
// incoming dependency's requested symbols are copied onto its target
// asset, then forwarded along that asset's outgoing dependencies
// (resolving weak re-exports and wildcard re-exports along the way), and
// recursively propagated into whatever those dependencies resolve to.
// Ported field-for-field from
// original_source/crates/parcel_core/src/asset_graph.rs's
// propagate_requested_symbols.
func (g *Graph) PropagateRequestedSymbols(assetNode, incomingDepNode NodeID, onUndeferred OnUndeferred) {
	incoming := g.dependencies.Get(g.nodes[incomingDepNode].depIdx)
	assetIdx := g.nodes[assetNode].assetIdx
	entry := g.assets.Get(assetIdx)

	reExports := make(map[heap.InternedString]struct{})
	wildcards := make(map[heap.InternedString]struct{})
	star := g.star

	if _, wants := incoming.requestedSymbols[star]; wants {
		for _, sym := range entry.asset.Symbols {
			if insertNew(entry.requestedSymbols, sym.Exported) && sym.IsWeak {
				reExports[sym.Local] = struct{}{}
			}
		}
		wildcards[star] = struct{}{}
	} else {
		for sym := range incoming.requestedSymbols {
			if !insertNew(entry.requestedSymbols, sym) {
				continue
			}
			if assetSym, ok := findExported(entry.asset.Symbols, sym); ok {
				if assetSym.IsWeak {
					reExports[assetSym.Local] = struct{}{}
				}
			} else {
				wildcards[sym] = struct{}{}
			}
		}
	}

	for _, depNodeIdx := range g.out[assetNode] {
		if g.nodes[depNodeIdx].kind != NodeDependency {
			continue
		}
		depEntry := g.dependencies.Get(g.nodes[depNodeIdx].depIdx)

		updated := false
		for _, sym := range depEntry.dependency.Symbols {
			switch {
			case sym.IsWeak && sym.Local == star:
				for w := range wildcards {
					if insertNew(depEntry.requestedSymbols, w) {
						updated = true
					}
				}
			case sym.IsWeak:
				if _, ok := reExports[sym.Local]; ok && insertNew(depEntry.requestedSymbols, sym.Exported) {
					updated = true
				}
			default:
				if insertNew(depEntry.requestedSymbols, sym.Exported) {
					updated = true
				}
			}
		}

		if !updated && depEntry.state != StateNew {
			continue
		}

		if target, ok := g.resolvedAssetOf(NodeID(depNodeIdx)); ok {
			g.PropagateRequestedSymbols(target, NodeID(depNodeIdx), onUndeferred)
		} else {
			onUndeferred(NodeID(depNodeIdx), &depEntry.dependency)
		}
	}
}

// resolvedAssetOf returns the single Asset node a dependency node points
// at, if it has been resolved.
func (g *Graph) resolvedAssetOf(depNode NodeID) (NodeID, bool) {
	for _, to := range g.out[depNode] {
		if g.nodes[to].kind == NodeAsset {
			return NodeID(to), true
		}
	}
	return 0, false
}

func insertNew(set map[heap.InternedString]struct{}, s heap.InternedString) bool {
	if _, ok := set[s]; ok {
		return false
	}
	set[s] = struct{}{}
	return true
}

func findExported(symbols []Symbol, exported heap.InternedString) (Symbol, bool) {
	for _, s := range symbols {
		if s.Exported == exported {
			return s, true
		}
	}
	return Symbol{}, false
}
