package requests

import (
	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/tracker"
)

// TargetRequest loads package.json's "targets" field for the directory
// containing an entry file, producing one Target per declared output
// (or a single synthesized default target when none are declared).
type TargetRequest struct {
	EntryPath   string
	ProjectRoot string
}

// Target is one resolved build output: an environment plus where its
// source and distribution files live.
type Target struct {
	Name   string
	Env    graph.Environment
	Dist   string
	Source string
}

// TargetOutput is a TargetRequest's result.
type TargetOutput struct {
	Targets []Target
}

func (r TargetRequest) ID() tracker.RequestID {
	return tracker.HashRequest(discriminantTarget, [2]string{r.EntryPath, r.ProjectRoot})
}

func (r TargetRequest) Run(ctx *tracker.RunContext) (any, []string, error) {
	fs := ctx.FS()
	pkg, err := config.LoadPackageJSON(fs, r.EntryPath, r.ProjectRoot)
	if err != nil {
		if _, ok := err.(*config.NotFoundError); ok {
			return TargetOutput{Targets: []Target{defaultTarget(r.EntryPath, config.PackageJSON{})}}, nil, nil
		}
		return nil, nil, err
	}

	invalidations := []string{pkg.Path}
	if len(pkg.Contents.Targets) == 0 {
		return TargetOutput{Targets: []Target{defaultTarget(r.EntryPath, pkg.Contents)}}, invalidations, nil
	}

	targets := make([]Target, 0, len(pkg.Contents.Targets))
	for name, cfg := range pkg.Contents.Targets {
		targets = append(targets, Target{
			Name:   name,
			Env:    environmentFromConfig(cfg, pkg.Contents),
			Dist:   cfg.Distribution,
			Source: firstNonEmpty(cfg.Source, r.EntryPath),
		})
	}
	return TargetOutput{Targets: targets}, invalidations, nil
}

// defaultTarget decides a target's Environment when package.json declares
// none: browser unless the package looks node-oriented (a "main"/
// "engines.node" entry with no "browser" field), per the Open Question
// decision recorded in DESIGN.md.
func defaultTarget(entryPath string, pkg config.PackageJSON) Target {
	context := graph.ContextBrowser
	if pkg.Browser == "" {
		if _, hasNode := pkg.Engines["node"]; hasNode || pkg.Main != "" {
			context = graph.ContextNode
		}
	}
	return Target{
		Name:   "default",
		Source: entryPath,
		Env: graph.Environment{
			Context:      context,
			OutputFormat: defaultFormatFor(context),
			Engines:      pkg.Engines,
		},
	}
}

func environmentFromConfig(cfg config.TargetConfig, pkg config.PackageJSON) graph.Environment {
	context := contextFromString(cfg.Context)
	format := formatFromString(cfg.OutputFormat)
	if cfg.OutputFormat == "" {
		format = defaultFormatFor(context)
	}
	engines := cfg.Engines
	if engines == nil {
		engines = pkg.Engines
	}
	return graph.Environment{
		Context:            context,
		OutputFormat:       format,
		IsLibrary:          cfg.IsLibrary,
		IncludeNodeModules: cfg.IncludeNodeMod,
		Engines:            engines,
	}
}

func contextFromString(s string) graph.EnvironmentContext {
	switch s {
	case "node":
		return graph.ContextNode
	case "web-worker", "webworker":
		return graph.ContextWebWorker
	case "service-worker", "serviceworker":
		return graph.ContextServiceWorker
	case "worklet":
		return graph.ContextWorklet
	case "electron-main":
		return graph.ContextElectronMain
	case "electron-renderer":
		return graph.ContextElectronRenderer
	default:
		return graph.ContextBrowser
	}
}

func formatFromString(s string) graph.OutputFormat {
	switch s {
	case "commonjs", "cjs":
		return graph.FormatCommonJS
	case "esmodule", "esm", "module":
		return graph.FormatESModule
	default:
		return graph.FormatGlobal
	}
}

func defaultFormatFor(context graph.EnvironmentContext) graph.OutputFormat {
	if context == graph.ContextNode {
		return graph.FormatCommonJS
	}
	return graph.FormatESModule
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
