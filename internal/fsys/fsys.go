// Package fsys provides the file system abstraction every file-touching
// component in the build core goes through, so tests can swap a real
// filesystem for an in-memory one without changing call sites — the same
// shape teacher's pack shows via github.com/spf13/afero-backed workspace
// filesystems.
package fsys

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FS is the trait surface every component depends on instead of touching
// os.* directly.
type FS interface {
	Cwd() (string, error)
	Canonicalize(path string) (string, error)
	ReadToString(path string) (string, error)
	IsFile(path string) bool
	IsDir(path string) bool
	CreateDirectory(path string) error
	WriteFile(path string, contents []byte) error
	Glob(pattern string) ([]string, error)
	Walk(root string, fn func(path string, isDir bool) error) error
}

// IOError wraps an underlying filesystem error with the path that caused
// it, matching the §7 error taxonomy's IO(underlying) kind.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// afs adapts an afero.Fs into the FS contract. Symlink canonicalization
// uses afero's OS-backed path when available, else falls back to
// filepath.Abs for in-memory filesystems that have no symlink concept.
type afs struct {
	fs afero.Fs

	symlinkCache sync.Map // string -> string, only populated by the OS-backed variant
	real         bool
}

// NewOS returns the real, disk-backed filesystem implementation.
func NewOS() FS {
	return &afs{fs: afero.NewOsFs(), real: true}
}

// NewMem returns an in-memory filesystem implementation, for tests and for
// resolvers that synthesize virtual assets.
func NewMem() FS {
	return &afs{fs: afero.NewMemMapFs()}
}

func (a *afs) Cwd() (string, error) {
	if !a.real {
		return "/", nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", &IOError{Op: "cwd", Path: "", Err: err}
	}
	return wd, nil
}

// Canonicalize resolves ".", ".." and symlinks. The real implementation
// caches symlink targets to avoid repeated lstat calls on hot resolver
// paths; the in-memory implementation has no symlinks and simply cleans
// the path.
func (a *afs) Canonicalize(path string) (string, error) {
	if !a.real {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", &IOError{Op: "canonicalize", Path: path, Err: err}
		}
		return filepath.Clean(abs), nil
	}
	if cached, ok := a.symlinkCache.Load(path); ok {
		return cached.(string), nil
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", &IOError{Op: "canonicalize", Path: path, Err: err}
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", &IOError{Op: "canonicalize", Path: path, Err: err}
	}
	a.symlinkCache.Store(path, resolved)
	return resolved, nil
}

func (a *afs) ReadToString(path string) (string, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

func (a *afs) IsFile(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (a *afs) IsDir(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && info.IsDir()
}

func (a *afs) CreateDirectory(path string) error {
	if err := a.fs.MkdirAll(path, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// WriteFile is documented in-memory only: production resolvers and
// transformers never write source files, only tests and cache writers do,
// and those go through this same call for both backends so tests exercise
// the real write path too.
func (a *afs) WriteFile(path string, contents []byte) error {
	if err := afero.WriteFile(a.fs, path, contents, 0o644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Glob expands a single-level shell pattern via afero.Glob; entry
// discovery composes this with Walk for recursive "**" patterns.
func (a *afs) Glob(pattern string) ([]string, error) {
	matches, err := afero.Glob(a.fs, pattern)
	if err != nil {
		return nil, &IOError{Op: "glob", Path: pattern, Err: err}
	}
	return matches, nil
}

// Walk visits every file and directory under root, depth-first, calling
// fn with each path and whether it is a directory.
func (a *afs) Walk(root string, fn func(path string, isDir bool) error) error {
	err := afero.Walk(a.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return fn(path, info.IsDir())
	})
	if err != nil {
		return &IOError{Op: "walk", Path: root, Err: err}
	}
	return nil
}
