// Package graph implements the typed asset-dependency DAG that the
// request tracker's requests incrementally build: Root -> Entry ->
// Dependency -> Asset -> Dependency -> Asset -> ... Node payloads and the
// requested-symbol propagation algorithm are ported directly from
// parcel_core's AssetGraph (original_source/crates/parcel_core/src/asset_graph.rs),
// re-expressed over plain Go slices/maps since nothing in the example
// pack ships a graph library suited to a domain-specific typed DAG with
// per-node side tables.
package graph

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/please-build/js-build-core/internal/heap"
)

// EnvironmentID is a 1-based index into a Graph's environment table;
// InternEnvironment deduplicates by structural hash, so two
// structurally-equal environments share one id. AssetID and DependencyID
// carry the non-zero 32-bit value keyToID folds from a record's SHA-256
// identity digest, the same value AddAsset/AddDependency store in
// Asset.ID/Dependency.ID (invariants 2/3). None of them is a literal
// heap.Slab offset: original_source's AssetGraph addresses records purely
// as Vec indices, and the shared 32-bit heap addressing scheme exists in
// the Rust core to support a scripting-host bridge this core has no
// Non-goal exception for.
type EnvironmentID uint32
type AssetID uint32
type DependencyID uint32

const noID = 0

// EnvironmentContext enumerates the target runtime contexts.
type EnvironmentContext int

const (
	ContextBrowser EnvironmentContext = iota
	ContextWebWorker
	ContextServiceWorker
	ContextWorklet
	ContextNode
	ContextElectronMain
	ContextElectronRenderer
)

// OutputFormat enumerates the module wrapping an Environment targets.
type OutputFormat int

const (
	FormatGlobal OutputFormat = iota
	FormatCommonJS
	FormatESModule
)

// SourceType distinguishes a module from a plain script.
type SourceType int

const (
	SourceModule SourceType = iota
	SourceScript
)

// SourceMapOptions mirrors the asset-level sourcemap knobs.
type SourceMapOptions struct {
	Inline     bool
	SourceRoot string
}

// Location marks a position in a source file for diagnostics.
type Location struct {
	FilePath string
	Line     int
	Column   int
}

// Environment is an immutable value object describing a build target.
// Two Environments with equal fields are deduplicated to the same
// EnvironmentID at construction time.
type Environment struct {
	Context             EnvironmentContext
	OutputFormat        OutputFormat
	SourceType          SourceType
	IsLibrary           bool
	ShouldOptimize      bool
	ShouldScopeHoist    bool
	Engines             map[string]string
	IncludeNodeModules  bool
	SourceMapOptions    *SourceMapOptions
	Loc                 *Location
}

// AssetKind enumerates asset content types; Other carries a free-form
// name for content types outside the built-in set.
type AssetKind int

const (
	AssetJs AssetKind = iota
	AssetJsx
	AssetTs
	AssetTsx
	AssetCss
	AssetHtml
	AssetOther
)

// AssetType pairs the AssetKind with its Other-kind name, if any.
type AssetType struct {
	Kind  AssetKind
	Other string
}

// BundleBehavior controls how the bundler groups an asset or dependency.
type BundleBehavior int

const (
	BundleNone BundleBehavior = iota
	BundleInline
	BundleIsolated
)

// AssetFlags bundles an Asset's boolean properties.
type AssetFlags struct {
	IsSource         bool
	SideEffects      bool
	IsBundleSplittable bool
	HasSymbols       bool
}

// AssetStats records size/time telemetry for an Asset.
type AssetStats struct {
	Size int64
	Time int64
}

// Symbol is one entry of an Asset's or Dependency's symbol table. A
// Local of "*" combined with IsWeak denotes a wildcard re-export.
type Symbol struct {
	Exported heap.InternedString
	Local    heap.InternedString
	Loc      *Location
	IsWeak   bool
	IsESM    bool
}

// Asset is a processed file plus its metadata.
type Asset struct {
	ID             heap.InternedString
	FilePath       string
	Env            EnvironmentID
	Type           AssetType
	BundleBehavior BundleBehavior
	Pipeline       string
	Query          string
	Flags          AssetFlags
	Symbols        []Symbol
	Stats          AssetStats
	UniqueKey      string
}

// DependencySpecifierType classifies how a specifier was authored.
type DependencySpecifierType int

const (
	SpecifierESM DependencySpecifierType = iota
	SpecifierCommonJS
	SpecifierURL
	SpecifierCustom
)

// DependencyPriority controls scheduling relative to its source asset.
type DependencyPriority int

const (
	PrioritySync DependencyPriority = iota
	PriorityParallel
	PriorityLazy
)

// DependencyFlags bundles a Dependency's boolean properties.
type DependencyFlags struct {
	Entry            bool
	Optional         bool
	NeedsStableName  bool
	IsESM            bool
	HasSymbols       bool
}

// Dependency describes one import edge out of an Asset (or, for an entry,
// out of the graph root).
type Dependency struct {
	ID                heap.InternedString
	SourceAsset       AssetID // noID for entry-seeded dependencies
	Env               EnvironmentID
	Specifier         heap.InternedString
	SpecifierType     DependencySpecifierType
	Priority          DependencyPriority
	BundleBehavior    BundleBehavior
	Flags             DependencyFlags
	Loc               *Location
	Symbols           []Symbol
	PackageConditions []string
	Pipeline          string
	Target            string
	Range             string
	ResolveFrom       string
	Meta              map[string]string
	ResolverMeta      map[string]string
}

func init() {
	gob.Register(Asset{})
	gob.Register(Dependency{})
}

// environmentKey hashes the structural fields of e. Engines is encoded as
// sorted key=value pairs rather than via gob directly: Go's map iteration
// order is randomized, and gob would otherwise make the digest depend on
// iteration order rather than content, breaking the "deduped by
// structural hash" invariant.
func environmentKey(e Environment) [32]byte {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|%v|%v|%v|%v|", e.Context, e.OutputFormat, e.SourceType,
		e.IsLibrary, e.ShouldOptimize, e.ShouldScopeHoist, e.IncludeNodeModules)
	for _, k := range sortedKeys(e.Engines) {
		fmt.Fprintf(h, "%s=%s;", k, e.Engines[k])
	}
	if e.SourceMapOptions != nil {
		fmt.Fprintf(h, "|%v", *e.SourceMapOptions)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func assetKey(a Asset) [32]byte {
	type identity struct {
		Type      AssetType
		Env       EnvironmentID
		FilePath  string
		Pipeline  string
		Query     string
		UniqueKey string
	}
	enc, _ := gobEncode(identity{a.Type, a.Env, a.FilePath, a.Pipeline, a.Query, a.UniqueKey})
	return sha256.Sum256(enc)
}

func dependencyKey(d Dependency) [32]byte {
	type identity struct {
		SourceAsset       AssetID
		Specifier         heap.InternedString
		SpecifierType     DependencySpecifierType
		Env               EnvironmentID
		Target            string
		Pipeline          string
		BundleBehavior    BundleBehavior
		Priority          DependencyPriority
		PackageConditions []string
	}
	enc, _ := gobEncode(identity{d.SourceAsset, d.Specifier, d.SpecifierType, d.Env, d.Target, d.Pipeline, d.BundleBehavior, d.Priority, d.PackageConditions})
	return sha256.Sum256(enc)
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("graph: encode identity: %w", err)
	}
	return buf.Bytes(), nil
}

// keyToID folds a 32-byte digest down to a non-zero 32-bit id, the same
// low-bits convention internal/heap's interner and page allocator use for
// their own 32-bit addresses.
func keyToID(key [32]byte) uint32 {
	id := binary.LittleEndian.Uint32(key[:4])
	if id == noID {
		id = 1
	}
	return id
}
