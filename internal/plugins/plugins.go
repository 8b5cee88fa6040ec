// Package plugins resolves a parsed .rc config into the ordered plugin
// list each phase of a build should run, matching paths against
// "[pipeline:]glob" patterns the same way please_js matches glob patterns
// for moduleconfig-driven resolution, generalized to the full phase list
// (resolvers, transformers, bundler, namers, packagers, optimizers,
// compressors, reporters, runtimes, validators).
package plugins

import (
	"fmt"
	"path"
	"strings"

	"github.com/please-build/js-build-core/internal/config"
)

// NotFoundError is returned when a required phase resolves to an empty
// plugin list for a given path.
type NotFoundError struct {
	Path     string
	Phase    string
	Pipeline string
}

func (e *NotFoundError) Error() string {
	if e.Pipeline != "" {
		return fmt.Sprintf("no %s plugin found for %s (pipeline %q)", e.Phase, e.Path, e.Pipeline)
	}
	return fmt.Sprintf("no %s plugin found for %s", e.Phase, e.Path)
}

// InvalidError reports a structurally invalid .rc after extends cascade.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string { return "invalid plugin config: " + e.Reason }

// Pattern is a parsed "[pipeline:]glob" entry from a plugin list.
type Pattern struct {
	Pipeline string
	Glob     string
	Name     string // the plugin name itself, as written after the pattern in map-shaped lists
}

// ParsePattern splits "pipeline:glob" into its parts; a pattern with no
// ":" has an empty pipeline.
func ParsePattern(raw string) Pattern {
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		return Pattern{Pipeline: raw[:idx], Glob: raw[idx+1:]}
	}
	return Pattern{Glob: raw}
}

// Matches reports whether p's glob matches filePath, independent of
// pipeline — callers filter by pipeline separately per the ordering rule.
func (p Pattern) Matches(filePath string) bool {
	ok, err := path.Match(p.Glob, filePath)
	if err == nil && ok {
		return true
	}
	// Fall back to a basename match: most configs write patterns like
	// "*.css" meant to match regardless of directory depth.
	ok, err = path.Match(p.Glob, path.Base(filePath))
	return err == nil && ok
}

// Registry answers phase-lookup queries against a resolved .rc config.
type Registry struct {
	rc *config.RC
}

// New validates rc's required phases and builds a Registry.
func New(rc *config.RC) (*Registry, error) {
	if rc.Bundler == "" {
		return nil, &InvalidError{Reason: "bundler is required"}
	}
	if len(rc.Namers) == 0 {
		return nil, &InvalidError{Reason: "namers must be non-empty"}
	}
	if len(rc.Resolvers) == 0 {
		return nil, &InvalidError{Reason: "resolvers must be non-empty"}
	}
	return &Registry{rc: rc}, nil
}

// Resolvers returns the ordered resolver plugin name list, unconditioned
// on path since resolvers apply globally.
func (r *Registry) Resolvers() []string {
	return r.rc.Resolvers
}

// Bundler returns the single configured bundler plugin name.
func (r *Registry) Bundler() string {
	return r.rc.Bundler
}

// Namers returns the ordered namer plugin name list.
func (r *Registry) Namers() []string {
	return r.rc.Namers
}

// Reporters returns the ordered reporter plugin name list.
func (r *Registry) Reporters() []string {
	return r.rc.Reporters
}

// Runtimes returns the ordered runtime plugin name list.
func (r *Registry) Runtimes() []string {
	return r.rc.Runtimes
}

// Transformers matches filePath (optionally scoped to pipeline) against
// the transformers map and returns the plugin list: the plugins of every
// matching pattern named for pipeline come first, then those of every
// matching unnamed (empty-pipeline) pattern. Within each group, patterns
// are visited in Go map iteration order, so when several patterns match,
// their relative order is not defined.
func (r *Registry) Transformers(filePath, pipeline string) []string {
	return matchPatternMap(r.rc.Transformers, filePath, pipeline)
}

// Optimizers mirrors Transformers for the optimizers phase.
func (r *Registry) Optimizers(filePath, pipeline string) []string {
	return matchPatternMap(r.rc.Optimizers, filePath, pipeline)
}

// Compressors mirrors Transformers for the compressors phase.
func (r *Registry) Compressors(filePath, pipeline string) []string {
	return matchPatternMap(r.rc.Compressors, filePath, pipeline)
}

// Validators mirrors Transformers for the validators phase.
func (r *Registry) Validators(filePath, pipeline string) []string {
	return matchPatternMap(r.rc.Validators, filePath, pipeline)
}

// Packagers returns the single packager plugin name matching filePath, the
// first pattern (by declaration order of the map's keys is unspecified in
// Go, so packagers are expected to use disjoint, non-overlapping globs in
// practice — ties are broken by the longest glob, favoring specificity).
func (r *Registry) Packagers(filePath string) (string, error) {
	best := ""
	bestGlobLen := -1
	for raw, name := range r.rc.Packagers {
		pat := ParsePattern(raw)
		if pat.Matches(filePath) && len(pat.Glob) > bestGlobLen {
			best = name
			bestGlobLen = len(pat.Glob)
		}
	}
	if best == "" {
		return "", &NotFoundError{Path: filePath, Phase: "packager"}
	}
	return best, nil
}

// NamedPipelines returns every distinct pipeline prefix declared anywhere
// across the transformers/optimizers/compressors/validators maps, the set
// a PathRequest consults to decide whether a "name:specifier" prefix on a
// dependency specifier is a real pipeline or just a scheme-looking
// substring to leave alone.
func (r *Registry) NamedPipelines() []string {
	seen := make(map[string]struct{})
	for _, m := range []map[string][]string{r.rc.Transformers, r.rc.Optimizers, r.rc.Compressors, r.rc.Validators} {
		for raw := range m {
			if pat := ParsePattern(raw); pat.Pipeline != "" {
				seen[pat.Pipeline] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

func matchPatternMap(m map[string][]string, filePath, pipeline string) []string {
	var named, unnamed []string
	for raw, plugins := range m {
		pat := ParsePattern(raw)
		if !pat.Matches(filePath) {
			continue
		}
		if pat.Pipeline == "" {
			unnamed = append(unnamed, plugins...)
			continue
		}
		if pat.Pipeline == pipeline {
			named = append(named, plugins...)
		}
	}
	return append(named, unnamed...)
}
