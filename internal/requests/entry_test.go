package requests

import (
	"context"
	"sort"
	"testing"

	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/tracker"
)

func newTestTracker(t *testing.T, fs fsys.FS) *tracker.Tracker {
	t.Helper()
	reg := newTestRegistry(t)
	tr := tracker.New(fs, reg, noopReporter{})
	t.Cleanup(tr.Close)
	return tr
}

func run(t *testing.T, tr *tracker.Tracker, req tracker.Request) any {
	t.Helper()
	v, err := tr.RunRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("RunRequest() error: %v", err)
	}
	return v
}

func TestEntryRequestSingleFile(t *testing.T) {
	fs := fsys.NewMem()
	if err := fs.WriteFile("/proj/src/index.js", []byte("export const x = 1;")); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	tr := newTestTracker(t, fs)

	out := run(t, tr, EntryRequest{Pattern: "/proj/src/index.js", ProjectRoot: "/proj"}).(EntryOutput)
	if len(out.Entries) != 1 || out.Entries[0] != "/proj/src/index.js" {
		t.Fatalf("Entries = %v, want [/proj/src/index.js]", out.Entries)
	}
}

func TestEntryRequestDirectoryUsesPackageJSONMain(t *testing.T) {
	fs := fsys.NewMem()
	if err := fs.WriteFile("/proj/package.json", []byte(`{"name":"proj","main":"lib/main.js"}`)); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	tr := newTestTracker(t, fs)

	out := run(t, tr, EntryRequest{Pattern: "/proj", ProjectRoot: "/proj"}).(EntryOutput)
	if len(out.Entries) != 1 || out.Entries[0] != "/proj/lib/main.js" {
		t.Fatalf("Entries = %v, want [/proj/lib/main.js]", out.Entries)
	}
}

func TestEntryRequestGlob(t *testing.T) {
	fs := fsys.NewMem()
	for _, p := range []string{"/proj/src/a.js", "/proj/src/b.js", "/proj/src/c.css"} {
		if err := fs.WriteFile(p, []byte("")); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", p, err)
		}
	}
	tr := newTestTracker(t, fs)

	out := run(t, tr, EntryRequest{Pattern: "/proj/src/*.js", ProjectRoot: "/proj"}).(EntryOutput)
	sort.Strings(out.Entries)
	want := []string{"/proj/src/a.js", "/proj/src/b.js"}
	if len(out.Entries) != len(want) || out.Entries[0] != want[0] || out.Entries[1] != want[1] {
		t.Fatalf("Entries = %v, want %v", out.Entries, want)
	}
}

func TestEntryRequestDoubleStarGlob(t *testing.T) {
	fs := fsys.NewMem()
	for _, p := range []string{"/proj/src/a.js", "/proj/src/nested/b.js", "/proj/src/c.css"} {
		if err := fs.WriteFile(p, []byte("")); err != nil {
			t.Fatalf("WriteFile(%s) error: %v", p, err)
		}
	}
	tr := newTestTracker(t, fs)

	out := run(t, tr, EntryRequest{Pattern: "/proj/src/**/*.js", ProjectRoot: "/proj"}).(EntryOutput)
	sort.Strings(out.Entries)
	want := []string{"/proj/src/a.js", "/proj/src/nested/b.js"}
	if len(out.Entries) != len(want) || out.Entries[0] != want[0] || out.Entries[1] != want[1] {
		t.Fatalf("Entries = %v, want %v", out.Entries, want)
	}
}
