// Package requests implements the concrete, memoizable request kinds the
// tracker schedules to build an asset graph: entry discovery, target
// resolution, specifier resolution, asset transformation, and the root
// AssetGraphRequest that wires them together. Ported from
// original_source/crates/parcel/src/requests/{path_request,asset_request,
// asset_graph_request}.rs.
package requests

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/please-build/js-build-core/internal/resolver"
	"github.com/please-build/js-build-core/internal/tracker"
)

// discriminant bytes distinguish request kinds with otherwise-identical
// gob-encoded stable fields from colliding in RequestID space.
const (
	discriminantEntry byte = iota + 1
	discriminantTarget
	discriminantPath
	discriminantAsset
	discriminantAssetGraph
)

// Resolver is the contract PathRequest consults, satisfied directly by
// *resolver.Adapter.
type Resolver interface {
	Resolve(specifier, from string, specType resolver.SpecifierType, conditions []string) resolver.Result
}

// PathRequest resolves one dependency's specifier to a concrete file (or
// an exclusion), trying each configured resolver in turn and stopping at
// the first one that doesn't answer Unresolved.
type PathRequest struct {
	Specifier      string
	From           string
	SpecifierType  resolver.SpecifierType
	Conditions     []string
	Pipeline       string // the dependency's own declared pipeline, if any
	NamedPipelines []string
	IsOptional     bool
	ResolveFrom    string
	SourcePath     string

	Resolvers []Resolver
}

// PathOutput is a PathRequest's result: exactly one of Excluded or
// Resolved is meaningful, discriminated by the two booleans.
type PathOutput struct {
	Excluded    bool
	Resolved    bool
	Path        string
	Code        string
	Pipeline    string
	Query       string
	SideEffects bool
	ModuleType  resolver.ModuleType
}

func (r PathRequest) ID() tracker.RequestID {
	return tracker.HashRequest(discriminantPath, struct {
		Specifier      string
		From           string
		SpecifierType  resolver.SpecifierType
		Conditions     []string
		Pipeline       string
		NamedPipelines []string
		IsOptional     bool
	}{r.Specifier, r.From, r.SpecifierType, r.Conditions, r.Pipeline, r.NamedPipelines, r.IsOptional})
}

func (r PathRequest) Run(ctx *tracker.RunContext) (any, []string, error) {
	pipeline, specifier := parsePipelinePrefix(r.Specifier, r.NamedPipelines)

	var invalidations []string
	for _, res := range r.Resolvers {
		result := res.Resolve(specifier, r.From, r.SpecifierType, r.Conditions)
		invalidations = append(invalidations, invalidationPaths(result)...)

		switch {
		case result.Resolved != nil:
			resolved := result.Resolved
			if !filepath.IsAbs(resolved.FilePath) {
				return nil, invalidations, fmt.Errorf("resolver must return an absolute path, but got %s", resolved.FilePath)
			}
			outPipeline := resolved.Pipeline
			if outPipeline == "" {
				outPipeline = pipeline
			}
			if outPipeline == "" {
				outPipeline = r.Pipeline
			}
			return PathOutput{
				Resolved:    true,
				Path:        resolved.FilePath,
				Code:        resolved.Code,
				Pipeline:    outPipeline,
				Query:       resolved.Query,
				SideEffects: resolved.SideEffects,
				ModuleType:  resolved.ModuleType,
			}, invalidations, nil
		case result.Excluded != nil:
			return PathOutput{Excluded: true}, nil, nil
		default:
			continue // Unresolved: try the next resolver
		}
	}

	if r.IsOptional {
		return PathOutput{Excluded: true}, nil, nil
	}

	from := r.ResolveFrom
	if from == "" {
		from = r.SourcePath
	}
	if from == "" {
		return nil, invalidations, fmt.Errorf("failed to resolve %s", r.Specifier)
	}
	return nil, invalidations, fmt.Errorf("failed to resolve %s from %s", r.Specifier, from)
}

// parsePipelinePrefix splits a "name:specifier" scheme prefix off the
// front of specifier, but only when name is one of the project's
// configured named pipelines — otherwise a colon is just part of an
// ordinary specifier (a Windows path, a URL scheme the resolver itself
// understands, ...).
func parsePipelinePrefix(specifier string, namedPipelines []string) (pipeline, rest string) {
	idx := strings.IndexByte(specifier, ':')
	if idx < 0 {
		return "", specifier
	}
	candidate := specifier[:idx]
	for _, name := range namedPipelines {
		if name == candidate {
			return candidate, specifier[idx+1:]
		}
	}
	return "", specifier
}

func invalidationPaths(result resolver.Result) []string {
	var inv *resolver.Invalidations
	switch {
	case result.Resolved != nil:
		inv = &result.Resolved.Invalidations
	case result.Excluded != nil:
		inv = &result.Excluded.Invalidations
	case result.Unresolved != nil:
		inv = &result.Unresolved.Invalidations
	default:
		return nil
	}
	paths := append([]string{}, inv.FileChange...)
	for _, fc := range inv.FileCreate {
		switch {
		case fc.Path != "":
			paths = append(paths, fc.Path)
		case fc.Glob != "":
			paths = append(paths, fc.Glob)
		case fc.AboveFileName != "":
			paths = append(paths, filepath.Join(fc.AboveDir, fc.AboveFileName))
		}
	}
	if inv.AlwaysInvalidate {
		paths = append(paths, "")
	}
	return paths
}
