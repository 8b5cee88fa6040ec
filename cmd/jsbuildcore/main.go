package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/thought-machine/go-flags"

	"github.com/please-build/js-build-core/internal/buildapi"
	"github.com/please-build/js-build-core/internal/fsys"
)

var opts = struct {
	Usage string

	Build struct {
		ProjectRoot string   `short:"r" long:"root" required:"true" description:"Project root directory"`
		LogLevel    string   `long:"log-level" default:"info" description:"error, warn, info, debug"`
		Mode        string   `long:"mode" default:"browser" description:"browser or node"`
		RCPath      string   `long:"rc" description:"Explicit .jsbuildcorerc path"`
		Cache       string   `long:"cache" description:"Path to write a SaveCache snapshot after building"`
		Args        struct {
			Entries []string `positional-arg-name:"entries" description:"Entry files, directories or globs"`
		} `positional-args:"true"`
	} `command:"build" alias:"b" description:"Build the asset graph once and exit"`

	Watch struct {
		ProjectRoot string   `short:"r" long:"root" required:"true" description:"Project root directory"`
		LogLevel    string   `long:"log-level" default:"info" description:"error, warn, info, debug"`
		Mode        string   `long:"mode" default:"browser" description:"browser or node"`
		RCPath      string   `long:"rc" description:"Explicit .jsbuildcorerc path"`
		Args        struct {
			Entries []string `positional-arg-name:"entries" description:"Entry files, directories or globs"`
		} `positional-args:"true"`
	} `command:"watch" alias:"w" description:"Build, then rebuild on every source change"`

	Snapshot struct {
		ProjectRoot string   `short:"r" long:"root" required:"true" description:"Project root directory"`
		Out         string   `short:"o" long:"out" required:"true" description:"Cache file to write"`
		Args        struct {
			Entries []string `positional-arg-name:"entries" description:"Entry files, directories or globs"`
		} `positional-args:"true"`
	} `command:"snapshot" description:"Build once and persist the asset graph to a cache file"`

	Restore struct {
		Args struct {
			Cache string `positional-arg-name:"cache" description:"Cache file written by snapshot"`
		} `positional-args:"true"`
	} `command:"restore" description:"Load a cache file and print its asset graph's entry files"`
}{
	Usage: `
jsbuildcore is the asset-graph construction core for the JS build pipeline.

It provides these main operations:
  - build:    run one asset-graph build and exit
  - watch:    build, then rebuild on every source file change
  - snapshot: build once and persist the result to a cache file
  - restore:  load a cache file and report what it contains
`,
}

var subCommands = map[string]func() int{
	"build": func() int {
		res, err := buildapi.Build(context.Background(), opts.Build.Args.Entries, buildapi.Options{
			ProjectRoot: opts.Build.ProjectRoot,
			Mode:        opts.Build.Mode,
			LogLevel:    opts.Build.LogLevel,
			RCPath:      opts.Build.RCPath,
		})
		if err != nil {
			log.Fatal(err)
		}
		reportDiagnostics(res)
		if opts.Build.Cache != "" {
			if err := writeSnapshot(opts.Build.Cache, res); err != nil {
				log.Fatal(err)
			}
		}
		return 0
	},
	"watch": func() int {
		sess, err := buildapi.NewSession(fsys.NewOS(), buildapi.Options{
			ProjectRoot: opts.Watch.ProjectRoot,
			Mode:        opts.Watch.Mode,
			LogLevel:    opts.Watch.LogLevel,
			RCPath:      opts.Watch.RCPath,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer sess.Close()

		err = sess.Watch(context.Background(), buildapi.WatchOptions{
			Entries: opts.Watch.Args.Entries,
			OnBuild: func(res buildapi.Result, err error) {
				if err != nil {
					sess.Logger.Sugar().Errorf("build failed: %v", err)
					return
				}
				reportDiagnostics(res)
			},
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
		return 0
	},
	"snapshot": func() int {
		res, err := buildapi.Build(context.Background(), opts.Snapshot.Args.Entries, buildapi.Options{
			ProjectRoot: opts.Snapshot.ProjectRoot,
		})
		if err != nil {
			log.Fatal(err)
		}
		if err := writeSnapshot(opts.Snapshot.Out, res); err != nil {
			log.Fatal(err)
		}
		return 0
	},
	"restore": func() int {
		f, err := os.Open(opts.Restore.Args.Cache)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()

		g, err := buildapi.LoadCache(f)
		if err != nil {
			log.Fatal(err)
		}
		for _, node := range g.EntryAssets() {
			fmt.Println(g.Asset(node).FilePath)
		}
		return 0
	},
}

func reportDiagnostics(res buildapi.Result) {
	for _, d := range res.Diagnostics {
		enc, _ := json.Marshal(d)
		fmt.Fprintln(os.Stderr, string(enc))
	}
}

func writeSnapshot(path string, res buildapi.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return buildapi.SaveCache(f, res.AssetGraph)
}

func main() {
	p := flags.NewParser(&opts, flags.Default)
	cmd, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}
	_ = cmd
	if p.Active == nil {
		p.WriteHelp(os.Stderr)
		os.Exit(1)
	}
	os.Exit(subCommands[p.Active.Name]())
}
