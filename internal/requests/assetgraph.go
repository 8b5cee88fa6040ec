package requests

import (
	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/heap"
	"github.com/please-build/js-build-core/internal/resolver"
	"github.com/please-build/js-build-core/internal/tracker"
)

// AssetGraphRequest is the root request: it seeds one EntryRequest per
// named entry, then drains a local event channel as Target/Path/Asset
// results arrive, mutating the one *graph.Graph it owns from this single
// goroutine (per §5's "asset-graph mutation confined to the
// AssetGraphRequest's own goroutine"). Every child request still goes
// through ctx.QueueRequest so the tracker memoizes it like any other
// request; only the resulting graph writes happen here instead of inside
// a nested Request.Run, mirroring the commented reference "Queue" fan-out
// in original_source/crates/parcel/src/requests/asset_graph_request.rs.
type AssetGraphRequest struct {
	Entries        []string
	ProjectRoot    string
	Resolvers      []Resolver
	NamedPipelines []string
	Transformers   TransformerSet
}

// AssetGraphOutput is the root request's result.
type AssetGraphOutput struct {
	Graph *graph.Graph
}

func (r *AssetGraphRequest) ID() tracker.RequestID {
	return tracker.HashRequest(discriminantAssetGraph, r.Entries)
}

type graphEventKind int

const (
	eventEntry graphEventKind = iota
	eventTarget
	eventPath
	eventAsset
)

type graphEvent struct {
	kind    graphEventKind
	node    graph.NodeID // the Entry or Dependency node this result concerns
	entry   string        // original entry pattern, for the eventEntry case
	value   any
	err     error
}

func (r *AssetGraphRequest) Run(ctx *tracker.RunContext) (any, []string, error) {
	g := graph.New(heap.NewInterner())

	events := make(chan graphEvent)
	inFlight := 0

	queue := func(kind graphEventKind, node graph.NodeID, entry string, req tracker.Request) {
		inFlight++
		go func() {
			v, err := ctx.QueueRequest(req)
			events <- graphEvent{kind: kind, node: node, entry: entry, value: v, err: err}
		}()
	}

	for _, pattern := range r.Entries {
		entryNode := g.AddEntry(pattern)
		queue(eventEntry, entryNode, pattern, EntryRequest{Pattern: pattern, ProjectRoot: r.ProjectRoot})
	}

	var diagnostics []string
	var firstErr error

	for inFlight > 0 {
		ev := <-events
		inFlight--
		if ev.err != nil {
			if firstErr == nil {
				firstErr = ev.err
			}
			continue
		}

		switch ev.kind {
		case eventEntry:
			out := ev.value.(EntryOutput)
			for _, entryPath := range out.Entries {
				queue(eventTarget, ev.node, entryPath, TargetRequest{EntryPath: entryPath, ProjectRoot: r.ProjectRoot})
			}

		case eventTarget:
			out := ev.value.(TargetOutput)
			for _, target := range out.Targets {
				r.addTargetDependency(g, ev.node, ev.entry, target, queue)
			}

		case eventPath:
			r.handlePathResult(g, ev.node, ev.value.(PathOutput), queue)

		case eventAsset:
			r.handleAssetResult(g, ev.node, ev.value.(AssetOutput), queue)
		}
	}

	if firstErr != nil {
		return nil, diagnostics, firstErr
	}
	return AssetGraphOutput{Graph: g}, diagnostics, nil
}

func (r *AssetGraphRequest) addTargetDependency(g *graph.Graph, entryNode graph.NodeID, entryPath string, target Target, queue func(graphEventKind, graph.NodeID, string, tracker.Request)) {
	env := g.InternEnvironment(target.Env)
	dep := graph.Dependency{
		Env:           env,
		Specifier:     g.Intern(target.Source),
		SpecifierType: graph.SpecifierURL,
		Target:        target.Name,
		Flags:         graph.DependencyFlags{Entry: true, NeedsStableName: true},
	}
	requested := []heap.InternedString{}
	if target.Env.IsLibrary {
		dep.Flags.HasSymbols = true
		star := g.Star()
		dep.Symbols = []graph.Symbol{{Exported: star, Local: star, IsWeak: true}}
		requested = append(requested, star)
	}

	depNode := g.AddDependency(entryNode, dep, requested)
	queue(eventPath, depNode, "", PathRequest{
		Specifier:      target.Source,
		From:           r.ProjectRoot,
		SpecifierType:  resolver.URL,
		NamedPipelines: r.NamedPipelines,
		SourcePath:     target.Source,
		Resolvers:      r.Resolvers,
	})
}

func (r *AssetGraphRequest) handlePathResult(g *graph.Graph, depNode graph.NodeID, out PathOutput, queue func(graphEventKind, graph.NodeID, string, tracker.Request)) {
	if out.Excluded {
		g.ExcludeDependency(depNode)
		return
	}
	if !out.Resolved {
		return
	}

	dep := g.Dependency(depNode)
	if !out.SideEffects && g.RequestedSymbolsEmpty(depNode) && dep.Flags.HasSymbols {
		g.AddAssetGroup(depNode)
		return
	}

	queue(eventAsset, depNode, "", AssetRequest{
		Env:          dep.Env,
		FilePath:     out.Path,
		Code:         out.Code,
		HasCode:      out.Code != "",
		Pipeline:     out.Pipeline,
		SideEffects:  out.SideEffects,
		Query:        out.Query,
		Transformers: r.Transformers,
	})
}

func (r *AssetGraphRequest) handleAssetResult(g *graph.Graph, depNode graph.NodeID, out AssetOutput, queue func(graphEventKind, graph.NodeID, string, tracker.Request)) {
	asset := graph.Asset{
		FilePath:  out.Asset.FilePath,
		Env:       out.Asset.Env,
		Type:      out.Asset.Type,
		Flags:     graph.AssetFlags{IsSource: true, SideEffects: out.Asset.SideEffects, HasSymbols: len(out.Asset.Symbols) > 0},
		Symbols:   convertSymbols(g, out.Asset.Symbols),
		Stats:     graph.AssetStats{Size: int64(len(out.Asset.Code))},
		UniqueKey: out.Asset.UniqueKey,
	}
	assetNode := g.AddAsset(depNode, asset)
	sourceAsset := graph.AssetID(g.Asset(assetNode).ID)

	for _, spec := range out.Dependencies {
		childDep := graph.Dependency{
			SourceAsset:   sourceAsset,
			Env:           out.Asset.Env,
			Specifier:     g.Intern(spec.Specifier),
			SpecifierType: convertSpecifierType(spec.SpecifierType),
			Priority:      spec.Priority,
			Flags:         graph.DependencyFlags{Optional: spec.IsOptional, HasSymbols: len(spec.ReExportSymbols) > 0},
			Symbols:       convertSymbols(g, spec.ReExportSymbols),
		}
		g.AddDependency(assetNode, childDep, internNames(g, spec.RequestedSymbols))
	}

	g.PropagateRequestedSymbols(assetNode, depNode, func(dep graph.NodeID, dependency *graph.Dependency) {
		queue(eventPath, dep, "", PathRequest{
			Specifier:      g.Lookup(dependency.Specifier),
			From:           out.Asset.FilePath,
			SpecifierType:  specifierTypeToResolver(dependency.SpecifierType),
			NamedPipelines: r.NamedPipelines,
			IsOptional:     dependency.Flags.Optional,
			SourcePath:     out.Asset.FilePath,
			Resolvers:      r.Resolvers,
		})
	})
}

func convertSymbols(g *graph.Graph, specs []SymbolSpec) []graph.Symbol {
	if len(specs) == 0 {
		return nil
	}
	out := make([]graph.Symbol, 0, len(specs))
	for _, s := range specs {
		out = append(out, graph.Symbol{Exported: g.Intern(s.Exported), Local: g.Intern(s.Local), IsWeak: s.IsWeak})
	}
	return out
}

func internNames(g *graph.Graph, names []string) []heap.InternedString {
	if len(names) == 0 {
		return nil
	}
	out := make([]heap.InternedString, 0, len(names))
	for _, n := range names {
		out = append(out, g.Intern(n))
	}
	return out
}

func convertSpecifierType(t resolver.SpecifierType) graph.DependencySpecifierType {
	switch t {
	case resolver.CommonJS:
		return graph.SpecifierCommonJS
	case resolver.URL:
		return graph.SpecifierURL
	case resolver.Custom:
		return graph.SpecifierCustom
	default:
		return graph.SpecifierESM
	}
}

func specifierTypeToResolver(t graph.DependencySpecifierType) resolver.SpecifierType {
	switch t {
	case graph.SpecifierCommonJS:
		return resolver.CommonJS
	case graph.SpecifierURL:
		return resolver.URL
	case graph.SpecifierCustom:
		return resolver.Custom
	default:
		return resolver.ESM
	}
}
