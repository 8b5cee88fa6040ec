// Package buildapi is the public entry point the CLI (and any embedder)
// drives: Build runs one asset-graph construction pass end to end — config
// discovery, plugin registry, resolver, tracker, and the AssetGraphRequest
// chain — and SaveCache/LoadCache persist the result between runs. It plays
// the role please_js/main.go's top-level "run" functions play for the
// teacher CLI, generalized from a single hardcoded pipeline into the
// config-driven one spec.md describes.
package buildapi

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/diag"
	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/plugins"
	"github.com/please-build/js-build-core/internal/requests"
	"github.com/please-build/js-build-core/internal/resolver"
	"github.com/please-build/js-build-core/internal/tracker"

	"go.uber.org/zap"
)

// Options configures one Build call.
type Options struct {
	ProjectRoot string
	Env         map[string]string
	Mode        string // "node" selects esbuild's Node resolver platform, any other value the browser platform; no development/production distinction is made
	LogLevel    string // "error", "warn", "info", "debug"
	RCPath      string // explicit .jsbuildcorerc path; empty means discover via config.Resolve
}

// Result is a Build call's outcome. AssetGraph is nil when err is non-nil.
type Result struct {
	AssetGraph  *graph.Graph
	Diagnostics []diag.Diagnostic
}

// Session bundles the long-lived pieces of a build (its tracker, filesystem
// and logger) so a CLI "watch" loop can call Build repeatedly against the
// same memoized state instead of starting from scratch on every file
// change.
type Session struct {
	FS       fsys.FS
	Tracker  *tracker.Tracker
	Logger   *zap.Logger
	rc       *config.RC
	registry *plugins.Registry
	opts     Options
	reporter *compositeReporter
}

// NewSession discovers config, builds the plugin registry, and starts a
// tracker. The returned Session's Tracker must be closed via Tracker.Close
// when no longer needed.
func NewSession(fs fsys.FS, opts Options) (*Session, error) {
	logger, err := buildLogger(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("buildapi: logger: %w", err)
	}

	rc, err := loadRC(fs, opts)
	if err != nil {
		return nil, fmt.Errorf("buildapi: load config: %w", err)
	}

	registry, err := plugins.New(rc)
	if err != nil {
		return nil, fmt.Errorf("buildapi: plugin registry: %w", err)
	}

	reporter := newCompositeReporter(logger)
	t := tracker.New(fs, registry, reporter)

	return &Session{FS: fs, Tracker: t, Logger: logger, rc: rc, registry: registry, opts: opts, reporter: reporter}, nil
}

// Close releases the session's tracker and flushes its logger.
func (s *Session) Close() {
	s.Tracker.Close()
	_ = s.Logger.Sync()
}

// Build runs one AssetGraphRequest for entries and returns its graph and
// any diagnostics the composite reporter collected along the way.
func (s *Session) Build(ctx context.Context, entries []string) (Result, error) {
	res, err := resolverFor(s.FS, s.opts)
	if err != nil {
		return Result{}, fmt.Errorf("buildapi: resolver: %w", err)
	}

	req := &requests.AssetGraphRequest{
		Entries:        entries,
		ProjectRoot:    s.opts.ProjectRoot,
		Resolvers:      []requests.Resolver{res},
		NamedPipelines: s.registry.NamedPipelines(),
		Transformers:   requests.TransformerSet{},
	}

	out, err := s.Tracker.RunRequest(ctx, req)
	diagnostics := s.reporter.drain()
	if err != nil {
		return Result{Diagnostics: diagnostics}, err
	}
	graphOut := out.(requests.AssetGraphOutput)
	return Result{AssetGraph: graphOut.Graph, Diagnostics: diagnostics}, nil
}

// Build is the one-shot convenience wrapper around NewSession + Build +
// Close, matching spec.md §6's Build(ctx, entries, opts) signature.
func Build(ctx context.Context, entries []string, opts Options) (Result, error) {
	fs := fsys.NewOS()
	sess, err := NewSession(fs, opts)
	if err != nil {
		return Result{}, err
	}
	defer sess.Close()
	return sess.Build(ctx, entries)
}

func loadRC(fs fsys.FS, opts Options) (*config.RC, error) {
	searchPath := opts.RCPath
	if searchPath == "" {
		searchPath = opts.ProjectRoot
	}
	var loadParent func(name string) (*config.RC, error)
	loadParent = func(name string) (*config.RC, error) {
		return config.Resolve(fs, name, opts.ProjectRoot, loadParent)
	}
	return config.Resolve(fs, searchPath, opts.ProjectRoot, loadParent)
}

func resolverFor(fs fsys.FS, opts Options) (*resolver.Adapter, error) {
	pkg, err := config.LoadPackageJSON(fs, opts.ProjectRoot, opts.ProjectRoot)
	modules := resolver.ModuleMap{}
	if err == nil && pkg.Contents.Exports != nil {
		// Leaf-only maps (a flat alias table) are the common case; nested
		// condition/subpath trees are resolved per specifier by the
		// Adapter itself via config.ExportsNode.Resolve, not flattened here.
		if pkg.Contents.Exports.IsSubpathMap() {
			for key, node := range pkg.Contents.Exports.Branches {
				if node.Leaf != "" {
					modules[key] = node.Leaf
				}
			}
		}
	}
	return resolver.New(fs, modules, platformFor(opts)), nil
}

func platformFor(opts Options) api.Platform {
	if opts.Mode == "node" {
		return api.PlatformNode
	}
	return api.PlatformBrowser
}
