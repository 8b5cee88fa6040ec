package buildapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/please-build/js-build-core/internal/fsys"
)

// writeProject lays out a minimal project on the real filesystem: the
// resolver's esbuild fallback shells out to esbuild's own, OS-backed
// resolution algorithm (see internal/resolver's ModuleResolvePlugin-derived
// Adapter), so an in-memory fsys.FS can't stand in for entry resolution
// here the way it can for the package-local request tests.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	rc := `{"bundler":"default","resolvers":["resolver"],"namers":["namer"]}`
	if err := os.WriteFile(filepath.Join(root, ".jsbuildcorerc"), []byte(rc), 0o644); err != nil {
		t.Fatalf("WriteFile(.jsbuildcorerc) error: %v", err)
	}
	pkg := `{"name":"proj","main":"src/index.js"}`
	if err := os.WriteFile(filepath.Join(root, "package.json"), []byte(pkg), 0o644); err != nil {
		t.Fatalf("WriteFile(package.json) error: %v", err)
	}
	entry := filepath.Join(srcDir, "index.js")
	if err := os.WriteFile(entry, []byte("export const a = 1;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile(index.js) error: %v", err)
	}
	return root
}

func TestSessionBuildSingleEntryNoDeps(t *testing.T) {
	root := writeProject(t)
	fs := fsys.NewOS()

	sess, err := NewSession(fs, Options{ProjectRoot: root, LogLevel: "error"})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	t.Cleanup(sess.Close)

	entry := filepath.Join(root, "src", "index.js")
	res, err := sess.Build(context.Background(), []string{entry})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if res.AssetGraph == nil {
		t.Fatal("Build() AssetGraph = nil")
	}

	entries := res.AssetGraph.EntryAssets()
	if len(entries) != 1 {
		t.Fatalf("EntryAssets() = %v, want 1", entries)
	}
	asset := res.AssetGraph.Asset(entries[0])
	if asset.FilePath != entry {
		t.Fatalf("entry asset FilePath = %q, want %q", asset.FilePath, entry)
	}
}

func TestNewSessionMissingRCIsError(t *testing.T) {
	root := t.TempDir()
	_, err := NewSession(fsys.NewOS(), Options{ProjectRoot: root})
	if err == nil {
		t.Fatal("NewSession() error = nil, want error when no .jsbuildcorerc is found")
	}
}
