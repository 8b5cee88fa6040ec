package requests

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/please-build/js-build-core/internal/diag"
	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/resolver"
)

// TransformContext carries the collaborators a Transformer needs beyond
// its input, mirroring RunTransformContext's file-system handle.
type TransformContext struct {
	FS fsys.FS
}

// TransformInput is handed to a Transformer. Asset is nil on a pipeline's
// first stage (the file hasn't been transformed yet, so Code/FilePath/
// Type describe the untouched source); later stages receive the prior
// stage's output asset instead.
type TransformInput struct {
	FilePath    string
	Code        string
	HasCode     bool
	Env         graph.EnvironmentID
	SideEffects bool
	Type        graph.AssetType

	Asset *TransformedAsset
}

// TransformedAsset is the asset-shaped portion of a transform's output.
type TransformedAsset struct {
	FilePath    string
	Code        string
	Type        graph.AssetType
	Env         graph.EnvironmentID
	SideEffects bool
	Symbols     []SymbolSpec
	UniqueKey   string
}

// SymbolSpec is a plain-string stand-in for graph.Symbol: the requests
// package never touches a heap.Interner directly, so dependency and
// asset symbol tables travel as strings until AssetGraphRequest interns
// them onto the shared graph.
type SymbolSpec struct {
	Exported string
	Local    string
	IsWeak   bool
}

// DependencySpec is a plain-string stand-in for graph.Dependency,
// discovered by a Transformer while processing an asset's source.
type DependencySpec struct {
	Specifier        string
	SpecifierType    resolver.SpecifierType
	Priority         graph.DependencyPriority
	IsOptional       bool
	RequestedSymbols []string
	ReExportSymbols  []SymbolSpec
}

// TransformResult is one Transformer stage's output.
type TransformResult struct {
	Asset                  TransformedAsset
	Dependencies           []DependencySpec
	InvalidateOnFileChange []string
}

// Transformer is implemented by every pipeline stage. A nil diagnostic
// return means success.
type Transformer interface {
	Transform(ctx *TransformContext, in TransformInput) (TransformResult, *diag.Diagnostic)
}

// TransformerSet maps a plugin name (as declared in a .jsbuildcorerc
// transformers list) to its implementation. Concrete transformer plugins
// are external collaborators (§1 Non-goals); this set is populated by
// whatever wires a build together (buildapi passes an empty set). When the
// registry matches no transformer names for a file, AssetRequest runs
// ESBuildTransformer instead of consulting this set.
type TransformerSet map[string]Transformer

// ESBuildTransformer is the always-available default transformer,
// wrapping esbuild's single-file Transform API for JS/JSX/TS/TSX/CSS —
// grounded on please_js/transpile.Run's api.Transform call, generalized
// from a one-shot CLI transpile into a pipeline stage that also discovers
// import/require/export-from dependencies via a lexical scan (full
// AST-accurate static analysis is out of scope; this default exists so
// the pipeline is runnable end-to-end, not to replace a real parser).
type ESBuildTransformer struct{}

func (ESBuildTransformer) Transform(ctx *TransformContext, in TransformInput) (TransformResult, *diag.Diagnostic) {
	filePath := in.FilePath
	code := in.Code
	hasCode := in.HasCode
	assetType := in.Type
	env := in.Env
	sideEffects := in.SideEffects

	if in.Asset != nil {
		filePath = in.Asset.FilePath
		code = in.Asset.Code
		hasCode = true
		assetType = in.Asset.Type
		env = in.Asset.Env
		sideEffects = in.Asset.SideEffects
	}

	var invalidateOnFileChange []string
	if !hasCode {
		raw, err := ctx.FS.ReadToString(filePath)
		if err != nil {
			d := diag.New("esbuild-transformer", err.Error())
			return TransformResult{}, &d
		}
		code = raw
		invalidateOnFileChange = append(invalidateOnFileChange, filePath)
	}

	result := api.Transform(code, api.TransformOptions{
		Loader:     loaderFor(assetType),
		Format:     api.FormatESModule,
		Target:     api.ESNext,
		JSX:        api.JSXAutomatic,
		Sourcefile: filepath.Base(filePath),
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		d := diag.New("esbuild-transformer", msg.Text)
		if msg.Location != nil {
			d.CodeFrames = []diag.CodeFrame{{
				Path: filePath,
				Code: code,
				Highlights: []diag.Highlight{{
					Start:   diag.Position{Line: msg.Location.Line, Column: msg.Location.Column},
					End:     diag.Position{Line: msg.Location.Line, Column: msg.Location.Column + msg.Location.Length},
					Message: msg.Text,
				}},
			}}
		}
		return TransformResult{}, &d
	}

	outputCode := string(result.Code)
	deps, localSymbols := scanSource(outputCode)

	return TransformResult{
		Asset: TransformedAsset{
			FilePath:    filePath,
			Code:        outputCode,
			Type:        assetType,
			Env:         env,
			SideEffects: sideEffects,
			Symbols:     localSymbols,
		},
		Dependencies:           deps,
		InvalidateOnFileChange: invalidateOnFileChange,
	}, nil
}

func loaderFor(t graph.AssetType) api.Loader {
	switch t.Kind {
	case graph.AssetJs:
		return api.LoaderJS
	case graph.AssetJsx:
		return api.LoaderJSX
	case graph.AssetTs:
		return api.LoaderTS
	case graph.AssetTsx:
		return api.LoaderTSX
	case graph.AssetCss:
		return api.LoaderCSS
	default:
		return api.LoaderText
	}
}

// assetTypeFromExtension generalizes please_js/common.Loaders' extension
// table from an esbuild-loader map into the graph package's AssetKind
// enum, which every pipeline stage (not only the esbuild default) shares.
func assetTypeFromExtension(filePath string) graph.AssetType {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".js", ".mjs", ".cjs":
		return graph.AssetType{Kind: graph.AssetJs}
	case ".jsx":
		return graph.AssetType{Kind: graph.AssetJsx}
	case ".ts", ".mts", ".cts":
		return graph.AssetType{Kind: graph.AssetTs}
	case ".tsx":
		return graph.AssetType{Kind: graph.AssetTsx}
	case ".css":
		return graph.AssetType{Kind: graph.AssetCss}
	case ".html", ".htm":
		return graph.AssetType{Kind: graph.AssetHtml}
	default:
		return graph.AssetType{Kind: graph.AssetOther, Other: strings.TrimPrefix(ext, ".")}
	}
}

var (
	importFromRe   = regexp.MustCompile(`(?m)^\s*import\s+(?:type\s+)?([^'"]*?)\s*from\s+['"]([^'"]+)['"]`)
	bareImportRe   = regexp.MustCompile(`(?m)^\s*import\s+['"]([^'"]+)['"]`)
	exportFromRe   = regexp.MustCompile(`(?m)^\s*export\s+(\*(?:\s+as\s+([\w$]+))?|\{([^}]*)\})\s*from\s+['"]([^'"]+)['"]`)
	localExportRe  = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:const|let|var|function\*?|class|async function)\s+([\w$]+)`)
	localNamedRe   = regexp.MustCompile(`(?m)^\s*export\s+\{([^}]*)\}\s*;?\s*$`)
	requireRe      = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	dynamicImport  = regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`)
)

// scanSource lexically scans transformed JS/TS output for module
// boundaries: import/require/dynamic-import specifiers become
// dependencies, and export declarations become the asset's own symbol
// table. This is a deliberate stand-in for a real AST pass (out of scope
// per §1's transformer-implementation Non-goal).
func scanSource(code string) ([]DependencySpec, []SymbolSpec) {
	deps := make(map[string]*DependencySpec)
	order := []string{}
	get := func(specifier string, specType resolver.SpecifierType, priority graph.DependencyPriority) *DependencySpec {
		if d, ok := deps[specifier]; ok {
			return d
		}
		d := &DependencySpec{Specifier: specifier, SpecifierType: specType, Priority: priority}
		deps[specifier] = d
		order = append(order, specifier)
		return d
	}

	var symbols []SymbolSpec

	for _, m := range importFromRe.FindAllStringSubmatch(code, -1) {
		clause, specifier := strings.TrimSpace(m[1]), m[2]
		d := get(specifier, resolver.ESM, graph.PrioritySync)
		d.RequestedSymbols = append(d.RequestedSymbols, importedNames(clause)...)
	}
	for _, m := range bareImportRe.FindAllStringSubmatch(code, -1) {
		get(m[1], resolver.ESM, graph.PrioritySync)
	}
	for _, m := range requireRe.FindAllStringSubmatch(code, -1) {
		get(m[1], resolver.CommonJS, graph.PrioritySync)
	}
	for _, m := range dynamicImport.FindAllStringSubmatch(code, -1) {
		d := get(m[1], resolver.ESM, graph.PriorityLazy)
		d.RequestedSymbols = append(d.RequestedSymbols, "*")
	}
	for _, m := range exportFromRe.FindAllStringSubmatch(code, -1) {
		clause, alias, named, specifier := m[1], m[2], m[3], m[4]
		d := get(specifier, resolver.ESM, graph.PrioritySync)
		if strings.HasPrefix(clause, "*") {
			sym := SymbolSpec{Exported: "*", Local: "*", IsWeak: true}
			if alias != "" {
				sym.Exported = alias
			}
			d.ReExportSymbols = append(d.ReExportSymbols, sym)
			if alias != "" {
				symbols = append(symbols, sym)
			}
			continue
		}
		for _, part := range strings.Split(named, ",") {
			local, exported := parseNamedBinding(part)
			if local == "" {
				continue
			}
			sym := SymbolSpec{Exported: exported, Local: local, IsWeak: true}
			d.ReExportSymbols = append(d.ReExportSymbols, sym)
			symbols = append(symbols, sym)
		}
	}
	for _, m := range localExportRe.FindAllStringSubmatch(code, -1) {
		name := m[1]
		symbols = append(symbols, SymbolSpec{Exported: name, Local: name})
	}
	for _, m := range localNamedRe.FindAllStringSubmatch(code, -1) {
		for _, part := range strings.Split(m[1], ",") {
			local, exported := parseNamedBinding(part)
			if local == "" {
				continue
			}
			symbols = append(symbols, SymbolSpec{Exported: exported, Local: local})
		}
	}

	out := make([]DependencySpec, 0, len(order))
	for _, specifier := range order {
		out = append(out, *deps[specifier])
	}
	return out, symbols
}

// importedNames extracts the names an import clause requests from the
// imported module: "default" for a default binding, "*" for a namespace
// ("* as ns"), and for each named import the exported name before any
// "as" alias.
func importedNames(clause string) []string {
	if clause == "" {
		return nil
	}
	var names []string
	rest := clause
	if idx := strings.IndexByte(rest, '{'); idx >= 0 {
		end := strings.IndexByte(rest, '}')
		if end > idx {
			for _, part := range strings.Split(rest[idx+1:end], ",") {
				imported, _ := parseNamedBinding(part)
				if imported != "" {
					names = append(names, imported)
				}
			}
		}
		rest = strings.TrimSpace(rest[:idx])
		rest = strings.TrimSuffix(rest, ",")
	}
	if strings.Contains(rest, "*") {
		names = append(names, "*")
		rest = ""
	}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		names = append(names, "default")
	}
	return names
}

// parseNamedBinding splits "a as b" into local "a" and exported "b", or
// "a" into local == exported == "a".
func parseNamedBinding(part string) (local, exported string) {
	part = strings.TrimSpace(part)
	if part == "" {
		return "", ""
	}
	if idx := strings.Index(part, " as "); idx >= 0 {
		return strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+4:])
	}
	return part, part
}
