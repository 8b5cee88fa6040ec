package resolver

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/please-build/js-build-core/internal/fsys"
)

func TestResolveModuleMapExportsAware(t *testing.T) {
	fs := fsys.NewMem()
	mustMkdir(t, fs, "/node_modules/acme")
	mustWrite(t, fs, "/node_modules/acme/package.json", `{
		"exports": {
			".": {"import": "./esm/index.js"},
			"./feature": "./feature.js"
		}
	}`)
	mustWrite(t, fs, "/node_modules/acme/esm/index.js", "export {};")
	mustWrite(t, fs, "/node_modules/acme/feature.js", "export {};")

	a := New(fs, ModuleMap{"acme": "/node_modules/acme"}, api.PlatformBrowser)

	inv := Invalidations{}
	path, ok := a.resolveModuleMap("acme", []string{"import"}, &inv)
	if !ok || path != "/node_modules/acme/esm/index.js" {
		t.Fatalf("resolveModuleMap(acme) = (%q, %v), want (esm/index.js, true)", path, ok)
	}

	path, ok = a.resolveModuleMap("acme/feature", []string{"import"}, &inv)
	if !ok || path != "/node_modules/acme/feature.js" {
		t.Fatalf("resolveModuleMap(acme/feature) = (%q, %v), want (feature.js, true)", path, ok)
	}
}

func TestResolveModuleMapFallsBackToMain(t *testing.T) {
	fs := fsys.NewMem()
	mustMkdir(t, fs, "/node_modules/legacy")
	mustWrite(t, fs, "/node_modules/legacy/package.json", `{"main": "./lib/index.js"}`)
	mustWrite(t, fs, "/node_modules/legacy/lib/index.js", "module.exports = {};")

	a := New(fs, ModuleMap{"legacy": "/node_modules/legacy"}, api.PlatformNode)
	inv := Invalidations{}
	path, ok := a.resolveModuleMap("legacy", nil, &inv)
	if !ok || path != "/node_modules/legacy/lib/index.js" {
		t.Fatalf("resolveModuleMap(legacy) = (%q, %v), want (lib/index.js, true)", path, ok)
	}
}

func TestResolveModuleMapNoMatch(t *testing.T) {
	fs := fsys.NewMem()
	a := New(fs, ModuleMap{"acme": "/node_modules/acme"}, api.PlatformBrowser)
	inv := Invalidations{}
	if _, ok := a.resolveModuleMap("unrelated-pkg", nil, &inv); ok {
		t.Fatalf("resolveModuleMap(unrelated-pkg) = ok, want not found")
	}
}

func TestResolvedFileModuleTypeByExtension(t *testing.T) {
	a := New(fsys.NewMem(), nil, api.PlatformBrowser)
	tests := []struct {
		path string
		want ModuleType
	}{
		{"/src/a.json", ModuleJSON},
		{"/src/a.cjs", ModuleCJS},
		{"/src/a.js", ModuleESM},
	}
	for _, tt := range tests {
		inv := Invalidations{}
		got := a.resolvedFile(tt.path, &inv)
		if got.ModuleType != tt.want {
			t.Fatalf("resolvedFile(%q).ModuleType = %v, want %v", tt.path, got.ModuleType, tt.want)
		}
		if len(got.Invalidations.FileChange) != 1 || got.Invalidations.FileChange[0] != tt.path {
			t.Fatalf("resolvedFile(%q).Invalidations.FileChange = %v, want [%q]", tt.path, got.Invalidations.FileChange, tt.path)
		}
	}
}

func mustMkdir(t *testing.T, fs fsys.FS, path string) {
	t.Helper()
	if err := fs.CreateDirectory(path); err != nil {
		t.Fatalf("CreateDirectory(%q) error: %v", path, err)
	}
}

func mustWrite(t *testing.T, fs fsys.FS, path, contents string) {
	t.Helper()
	if err := fs.WriteFile(path, []byte(contents)); err != nil {
		t.Fatalf("WriteFile(%q) error: %v", path, err)
	}
}
