// Package resolver wraps github.com/evanw/esbuild's resolution algorithm
// behind the tracker's narrower contract: given a specifier, an importer,
// and a specifier kind, either resolve it to a concrete file, report it
// excluded, or report it unresolved — each case carrying the invalidations
// that should re-trigger resolution on a later build.
//
// Grounded on please_js/common.ModuleResolvePlugin: a throwaway esbuild
// plugin captures PluginBuild.Resolve's result from inside OnResolve, the
// same "run esbuild only far enough to ask its resolver a question" shape
// the teacher uses for bare-specifier module-map resolution.
package resolver

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/fsys"
)

// SpecifierType classifies how a specifier was written in source.
type SpecifierType int

const (
	ESM SpecifierType = iota
	CommonJS
	URL
	Custom
)

// ModuleType classifies the resolved file's module system.
type ModuleType int

const (
	ModuleCJS ModuleType = iota
	ModuleJSON
	ModuleESM
)

// FileCreateInvalidation is one of three ways a future file creation can
// invalidate a resolution: an exact path, any file of a given name found
// while walking up from a directory, or a glob.
type FileCreateInvalidation struct {
	Path          string
	AboveFileName string
	AboveDir      string
	Glob          string
}

// Invalidations bundles every condition under which a cached resolution
// must be recomputed.
type Invalidations struct {
	FileChange       []string
	FileCreate       []FileCreateInvalidation
	AlwaysInvalidate bool
}

func (inv *Invalidations) addFileChange(paths ...string) {
	for _, p := range paths {
		if p != "" {
			inv.FileChange = append(inv.FileChange, p)
		}
	}
}

// Resolved is returned when the specifier resolves to a concrete file.
type Resolved struct {
	FilePath      string
	Code          string
	Pipeline      string
	Query         string
	SideEffects   bool
	ModuleType    ModuleType
	Invalidations Invalidations
}

// Excluded is returned for specifiers deliberately excluded from the
// graph (e.g. external packages).
type Excluded struct {
	Invalidations Invalidations
}

// Unresolved is returned when nothing matches the specifier.
type Unresolved struct {
	Invalidations Invalidations
}

// Result is the sum type a resolve call returns: exactly one of Resolved,
// Excluded or Unresolved is non-nil.
type Result struct {
	Resolved   *Resolved
	Excluded   *Excluded
	Unresolved *Unresolved
}

// ModuleMap aliases bare specifiers to on-disk package roots, mirroring
// please_js's moduleconfig.txt format (loaded by config.Load elsewhere;
// the adapter only consumes the parsed map).
type ModuleMap map[string]string

// Adapter resolves specifiers for one Environment's platform, combining a
// first-party exports-aware pass over ModuleMap entries with an esbuild
// fallback for everything else.
type Adapter struct {
	fs       fsys.FS
	modules  ModuleMap
	platform api.Platform
}

// New constructs an Adapter. platform is passed to esbuild's resolver
// ("node" vs "browser"); the exports-tree pass over ModuleMap entries uses
// only the conditions each Resolve call supplies.
func New(fs fsys.FS, modules ModuleMap, platform api.Platform) *Adapter {
	return &Adapter{fs: fs, modules: modules, platform: platform}
}

// resolveOutcome is built up by captureResolvePlugin's OnResolve callback,
// which runs synchronously inside api.Build before it returns. Each
// Resolve call constructs its own outcome and plugin closure, so
// concurrent callers never share mutable state.
type resolveOutcome struct {
	path     string
	excluded bool
}

// Resolve implements the (specifier, from, specifierType, conditions)
// contract.
func (a *Adapter) Resolve(specifier, from string, specType SpecifierType, conditions []string) Result {
	inv := Invalidations{}

	if path, ok := a.resolveModuleMap(specifier, conditions, &inv); ok {
		return Result{Resolved: a.resolvedFile(path, &inv)}
	}

	outcome := &resolveOutcome{}
	api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   fmt.Sprintf("import %q;", specifier),
			ResolveDir: resolveDirFor(from),
			Loader:     api.LoaderJS,
		},
		Platform: a.platform,
		Bundle:   true,
		Write:    false,
		Plugins:  []api.Plugin{captureResolvePlugin(outcome, &inv)},
		LogLevel: api.LogLevelSilent,
	})

	if outcome.path != "" {
		return Result{Resolved: a.resolvedFile(outcome.path, &inv)}
	}
	if outcome.excluded {
		return Result{Excluded: &Excluded{Invalidations: inv}}
	}
	return Result{Unresolved: &Unresolved{Invalidations: inv}}
}

func resolveDirFor(from string) string {
	if from == "" {
		return "."
	}
	return filepath.Dir(from)
}

func (a *Adapter) resolvedFile(path string, inv *Invalidations) *Resolved {
	inv.addFileChange(path)
	mt := ModuleESM
	switch filepath.Ext(path) {
	case ".json":
		mt = ModuleJSON
	case ".cjs":
		mt = ModuleCJS
	}
	return &Resolved{
		FilePath:      path,
		ModuleType:    mt,
		SideEffects:   true,
		Invalidations: *inv,
	}
}

// resolveModuleMap performs the exports-aware pass: longest-prefix match
// against the module map, then exports-tree resolution via
// config.ExportsNode, exactly mirroring ModuleResolvePlugin's longest-match
// plus resolvePackageEntry logic.
func (a *Adapter) resolveModuleMap(specifier string, conditions []string, inv *Invalidations) (string, bool) {
	if len(specifier) == 0 || specifier[0] == '.' || specifier[0] == '/' {
		return "", false
	}
	bestName, bestPath := "", ""
	for name, path := range a.modules {
		if specifier == name || strings.HasPrefix(specifier, name+"/") {
			if len(name) > len(bestName) {
				bestName, bestPath = name, path
			}
		}
	}
	if bestName == "" {
		return "", false
	}

	absPkg, err := filepath.Abs(bestPath)
	if err != nil {
		return "", false
	}
	subpath := "."
	if specifier != bestName {
		subpath = "./" + strings.TrimPrefix(specifier, bestName+"/")
	}

	pkgJSONPath := filepath.Join(absPkg, "package.json")
	inv.addFileChange(pkgJSONPath)
	if !a.fs.IsFile(pkgJSONPath) {
		return "", false
	}
	raw, err := a.fs.ReadToString(pkgJSONPath)
	if err != nil {
		return "", false
	}
	var pkg config.PackageJSON
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return "", false
	}

	if pkg.Exports != nil {
		if rel, ok := pkg.Exports.Resolve(subpath, conditions); ok {
			resolved := filepath.Join(absPkg, rel)
			if a.fs.IsFile(resolved) {
				return resolved, true
			}
		}
	}
	if subpath == "." {
		for _, candidate := range []string{pkg.Module, pkg.Main} {
			if candidate == "" {
				continue
			}
			resolved := filepath.Join(absPkg, candidate)
			if a.fs.IsFile(resolved) {
				return resolved, true
			}
		}
	}
	return "", false
}

// captureResolvePlugin registers an OnResolve handler that records the
// single import statement's resolution onto outcome, then marks the
// import external so esbuild never tries to load or bundle it — only the
// resolve step is wanted.
func captureResolvePlugin(outcome *resolveOutcome, inv *Invalidations) api.Plugin {
	return api.Plugin{
		Name: "jsbuildcore-capture-resolve",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					result := build.Resolve(args.Path, api.ResolveOptions{
						ResolveDir: args.ResolveDir,
						Kind:       args.Kind,
					})
					if len(result.Errors) != 0 {
						return api.OnResolveResult{External: true}, nil
					}
					if result.External {
						outcome.excluded = true
						return api.OnResolveResult{Path: args.Path, External: true}, nil
					}
					outcome.path = result.Path
					inv.addFileChange(result.Path)
					return api.OnResolveResult{Path: result.Path, External: true}, nil
				},
			)
		},
	}
}
