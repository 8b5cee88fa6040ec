package requests

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/tracker"
)

// EntryRequest resolves one entry pattern named on the command line (or in
// a build config) into a concrete list of source file paths: a direct
// file, a directory (via its package.json main/module field), or a glob.
type EntryRequest struct {
	Pattern     string
	ProjectRoot string
}

// EntryOutput is an EntryRequest's result.
type EntryOutput struct {
	Entries []string
}

func (r EntryRequest) ID() tracker.RequestID {
	return tracker.HashRequest(discriminantEntry, [2]string{r.Pattern, r.ProjectRoot})
}

func (r EntryRequest) Run(ctx *tracker.RunContext) (any, []string, error) {
	fs := ctx.FS()
	invalidations := []string{r.Pattern}

	if fs.IsDir(r.Pattern) {
		entry, inv, err := entryFromDirectory(fs, r.Pattern, r.ProjectRoot)
		invalidations = append(invalidations, inv...)
		if err != nil {
			return nil, invalidations, err
		}
		return EntryOutput{Entries: []string{entry}}, invalidations, nil
	}

	if isGlobPattern(r.Pattern) {
		matches, err := expandGlob(fs, r.Pattern)
		if err != nil {
			return nil, invalidations, err
		}
		return EntryOutput{Entries: matches}, invalidations, nil
	}

	abs, err := fs.Canonicalize(r.Pattern)
	if err != nil {
		return nil, invalidations, err
	}
	return EntryOutput{Entries: []string{abs}}, invalidations, nil
}

func entryFromDirectory(fs fsys.FS, dir, projectRoot string) (string, []string, error) {
	pkg, err := config.LoadPackageJSON(fs, dir, projectRoot)
	if err != nil {
		return "", nil, err
	}
	candidate := pkg.Contents.Module
	if candidate == "" {
		candidate = pkg.Contents.Main
	}
	if candidate == "" {
		candidate = "index.js"
	}
	return filepath.Join(filepath.Dir(pkg.Path), candidate), []string{pkg.Path}, nil
}

func isGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// expandGlob resolves a pattern via fs.Glob for ordinary shell globs, or
// via fs.Walk for "**" patterns that need to search an arbitrary depth of
// directories — a small hand-rolled matcher since afero (and the stdlib
// path/filepath package it mirrors) has no native "**" support.
func expandGlob(fs fsys.FS, pattern string) ([]string, error) {
	idx := strings.Index(pattern, "**")
	if idx < 0 {
		return fs.Glob(pattern)
	}

	base := filepath.Clean(pattern[:idx])
	if base == "." || base == "" {
		cwd, err := fs.Cwd()
		if err != nil {
			return nil, err
		}
		base = cwd
	}
	suffix := strings.TrimPrefix(pattern[idx+2:], "/")

	var matches []string
	err := fs.Walk(base, func(p string, isDir bool) error {
		if isDir {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := path.Match(suffix, rel); ok {
			matches = append(matches, p)
			return nil
		}
		if ok, _ := path.Match(suffix, path.Base(rel)); ok {
			matches = append(matches, p)
		}
		return nil
	})
	return matches, err
}
