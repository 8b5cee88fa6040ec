package config

import (
	"testing"

	"github.com/please-build/js-build-core/internal/fsys"
)

func TestLoadWalksUpToProjectRoot(t *testing.T) {
	fs := fsys.NewMem()
	mustMkdir(t, fs, "/repo/pkg/a/b")
	mustWrite(t, fs, "/repo/.jsbuildcorerc", `{"bundler":"default"}`)

	file, err := Load[RC](fs, "/repo/pkg/a/b", "/repo", ".jsbuildcorerc")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if file.Contents.Bundler != "default" {
		t.Fatalf("Bundler = %q, want %q", file.Contents.Bundler, "default")
	}
}

func TestLoadNotFoundAboveProjectRoot(t *testing.T) {
	fs := fsys.NewMem()
	mustMkdir(t, fs, "/repo/pkg")

	_, err := Load[RC](fs, "/repo/pkg", "/repo", ".jsbuildcorerc")
	if err == nil {
		t.Fatalf("Load() error = nil, want NotFoundError")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("Load() error = %T, want *NotFoundError", err)
	}
}

func TestLoadParseErrorHasLineColumn(t *testing.T) {
	fs := fsys.NewMem()
	mustMkdir(t, fs, "/repo")
	mustWrite(t, fs, "/repo/.jsbuildcorerc", "{\n  \"bundler\": ,\n}")

	_, err := Load[RC](fs, "/repo", "/repo", ".jsbuildcorerc")
	if err == nil {
		t.Fatalf("Load() error = nil, want ParseError")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("Load() error = %T, want *ParseError", err)
	}
	if perr.Line != 2 {
		t.Fatalf("Line = %d, want 2", perr.Line)
	}
}

func TestExportsNodeStringLeaf(t *testing.T) {
	var n ExportsNode
	if err := n.UnmarshalJSON([]byte(`"./index.js"`)); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}
	path, ok := n.Resolve(".", []string{"import"})
	if !ok || path != "./index.js" {
		t.Fatalf("Resolve() = (%q, %v), want (./index.js, true)", path, ok)
	}
}

func TestExportsNodeSubpathMap(t *testing.T) {
	var n ExportsNode
	raw := `{".": {"import": "./esm/index.js", "require": "./cjs/index.js"}, "./feature": "./feature.js"}`
	if err := n.UnmarshalJSON([]byte(raw)); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}

	tests := []struct {
		subpath    string
		conditions []string
		want       string
	}{
		{".", []string{"import"}, "./esm/index.js"},
		{".", []string{"require"}, "./cjs/index.js"},
		{"./feature", []string{"import"}, "./feature.js"},
	}
	for _, tt := range tests {
		got, ok := n.Resolve(tt.subpath, tt.conditions)
		if !ok || got != tt.want {
			t.Fatalf("Resolve(%q, %v) = (%q, %v), want (%q, true)", tt.subpath, tt.conditions, got, ok, tt.want)
		}
	}
}

func TestExportsNodeMissingSubpath(t *testing.T) {
	var n ExportsNode
	if err := n.UnmarshalJSON([]byte(`{".": "./index.js"}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}
	if _, ok := n.Resolve("./nope", nil); ok {
		t.Fatalf("Resolve(./nope) = ok, want not found")
	}
}

func TestRCSpliceSentinel(t *testing.T) {
	parent := &RC{Resolvers: []string{"parent-resolver"}}
	child := &RC{Extends: StringOrSlice{"parent"}, Resolvers: []string{"child-resolver", "...", "child-resolver-2"}}

	merged := spliceInto(child, parent)
	want := []string{"child-resolver", "parent-resolver", "child-resolver-2"}
	if len(merged.Resolvers) != len(want) {
		t.Fatalf("Resolvers = %v, want %v", merged.Resolvers, want)
	}
	for i := range want {
		if merged.Resolvers[i] != want[i] {
			t.Fatalf("Resolvers[%d] = %q, want %q", i, merged.Resolvers[i], want[i])
		}
	}
}

func TestStringOrSliceAcceptsBothShapes(t *testing.T) {
	var a StringOrSlice
	if err := a.UnmarshalJSON([]byte(`"single"`)); err != nil {
		t.Fatalf("UnmarshalJSON(string) error: %v", err)
	}
	if len(a) != 1 || a[0] != "single" {
		t.Fatalf("a = %v, want [single]", a)
	}

	var b StringOrSlice
	if err := b.UnmarshalJSON([]byte(`["one", "two"]`)); err != nil {
		t.Fatalf("UnmarshalJSON(array) error: %v", err)
	}
	if len(b) != 2 {
		t.Fatalf("b = %v, want 2 elements", b)
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
