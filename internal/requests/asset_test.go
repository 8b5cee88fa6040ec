package requests

import (
	"context"
	"testing"

	"github.com/please-build/js-build-core/internal/config"
	"github.com/please-build/js-build-core/internal/diag"
	"github.com/please-build/js-build-core/internal/fsys"
	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/plugins"
	"github.com/please-build/js-build-core/internal/tracker"
)

type fakeTransformer struct {
	result TransformResult
	diag   *diag.Diagnostic
}

func (f fakeTransformer) Transform(ctx *TransformContext, in TransformInput) (TransformResult, *diag.Diagnostic) {
	return f.result, f.diag
}

func newTestTrackerWithTransformers(t *testing.T, fs fsys.FS, rules map[string][]string) *tracker.Tracker {
	t.Helper()
	reg, err := plugins.New(&config.RC{
		Bundler: "default", Namers: []string{"namer"}, Resolvers: []string{"resolver"},
		Transformers: rules,
	})
	if err != nil {
		t.Fatalf("plugins.New() error: %v", err)
	}
	tr := tracker.New(fs, reg, noopReporter{})
	t.Cleanup(tr.Close)
	return tr
}

func TestAssetRequestSingleStagePipeline(t *testing.T) {
	tr := newTestTrackerWithTransformers(t, fsys.NewMem(), map[string][]string{"*.js": {"my-loader"}})
	want := TransformedAsset{
		FilePath: "/proj/src/a.js",
		Code:     "export const a = 1;",
		Type:     graph.AssetType{Kind: graph.AssetJs},
	}
	transformers := TransformerSet{
		"my-loader": fakeTransformer{result: TransformResult{
			Asset:        want,
			Dependencies: []DependencySpec{{Specifier: "./b"}},
		}},
	}

	out := run(t, tr, AssetRequest{
		FilePath: "/proj/src/a.js", Transformers: transformers,
	}).(AssetOutput)
	if out.Asset.FilePath != want.FilePath || out.Asset.Code != want.Code {
		t.Fatalf("Asset = %+v, want %+v", out.Asset, want)
	}
	if len(out.Dependencies) != 1 || out.Dependencies[0].Specifier != "./b" {
		t.Fatalf("Dependencies = %v, want one entry ./b", out.Dependencies)
	}
}

func TestAssetRequestRecursesOnTypeChange(t *testing.T) {
	tr := newTestTrackerWithTransformers(t, fsys.NewMem(), map[string][]string{
		"*.vue": {"vue-loader"},
		"*.css": {"css-loader"},
	})
	cssOut := TransformedAsset{FilePath: "/proj/src/a.css", Code: ".a{color:red}", Type: graph.AssetType{Kind: graph.AssetCss}}
	finalOut := TransformedAsset{FilePath: "/proj/src/a.css", Code: ".a{color:red}", Type: graph.AssetType{Kind: graph.AssetCss}}
	transformers := TransformerSet{
		"vue-loader": fakeTransformer{result: TransformResult{Asset: cssOut}},
		"css-loader": fakeTransformer{result: TransformResult{Asset: finalOut}},
	}

	out := run(t, tr, AssetRequest{
		FilePath: "/proj/src/a.vue", Transformers: transformers,
	}).(AssetOutput)
	if out.Asset.Type.Kind != graph.AssetCss {
		t.Fatalf("Asset.Type = %v, want AssetCss after recursing into the css pipeline", out.Asset.Type)
	}
}

func TestAssetRequestUnknownTransformerNameIsError(t *testing.T) {
	tr := newTestTrackerWithTransformers(t, fsys.NewMem(), map[string][]string{"*.js": {"missing-loader"}})
	_, err := tr.RunRequest(context.Background(), AssetRequest{
		FilePath: "/proj/src/a.js", Transformers: TransformerSet{},
	})
	if err == nil {
		t.Fatalf("RunRequest() error = nil, want error for unknown transformer name")
	}
}
