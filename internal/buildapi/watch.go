package buildapi

import (
	"context"

	"go.uber.org/zap"

	watchpkg "github.com/please-build/js-build-core/internal/watch"
)

// FileEventKind mirrors watch.Kind at the public API boundary, so callers
// outside internal/ never need to import internal/watch directly.
type FileEventKind = watchpkg.Kind

const (
	FileCreate = watchpkg.Create
	FileModify = watchpkg.Modify
	FileRemove = watchpkg.Remove
	FileRename = watchpkg.Rename
)

// FileEvent is one settled filesystem change reported while watching.
type FileEvent struct {
	Kind FileEventKind
	Path string
}

// WatchOptions configures Session.Watch.
type WatchOptions struct {
	Entries []string
	// OnBuild is called after every build this loop triggers (the initial
	// one and every rebuild after a settled batch of file events).
	OnBuild func(Result, error)
}

// Watch runs an initial Build, then watches the file of every asset in
// the built graph (registerWatchPaths, repeated after each successful
// rebuild) and re-Builds whenever a settled batch of changes arrives,
// calling NextBuild with the changed paths to invalidate just the affected
// request nodes before re-running — generalized, per §6, from
// mangle_watcher's single hardcoded directory into the files a real build
// touches.
// Watch blocks until ctx is cancelled.
func (s *Session) Watch(ctx context.Context, opts WatchOptions) error {
	w, err := watchpkg.New(s.Logger, watchpkg.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := s.Build(ctx, opts.Entries)
	if opts.OnBuild != nil {
		opts.OnBuild(res, err)
	}
	if err == nil {
		s.registerWatchPaths(w, res)
	}

	go w.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			paths := make([]string, 0, len(batch))
			for _, ev := range batch {
				paths = append(paths, ev.Path)
			}
			s.Tracker.NextBuild(paths)

			res, err := s.Build(ctx, opts.Entries)
			if opts.OnBuild != nil {
				opts.OnBuild(res, err)
			}
			if err == nil {
				s.registerWatchPaths(w, res)
			}
		}
	}
}

// registerWatchPaths walks the just-built graph's source assets and adds
// each one's file to the watcher; re-adding an already-watched directory
// is a cheap no-op (Watcher.Add dedupes by directory).
func (s *Session) registerWatchPaths(w *watchpkg.Watcher, res Result) {
	if res.AssetGraph == nil {
		return
	}
	for _, asset := range res.AssetGraph.Assets() {
		if asset.FilePath == "" {
			continue
		}
		if err := w.Add(asset.FilePath); err != nil {
			s.Logger.Warn("watch: could not add path", zap.String("path", asset.FilePath), zap.Error(err))
		}
	}
}
