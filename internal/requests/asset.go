package requests

import (
	"fmt"
	"strings"

	"github.com/please-build/js-build-core/internal/graph"
	"github.com/please-build/js-build-core/internal/plugins"
	"github.com/please-build/js-build-core/internal/tracker"
)

// AssetRequest runs the configured transformer pipeline over one
// resolved file, switching pipelines mid-run if a transformer changes
// the asset's type (e.g. a ".vue" file transformed down to JS + CSS
// fragments). Ported from
// original_source/crates/parcel/src/requests/asset_request.rs.
type AssetRequest struct {
	Env          graph.EnvironmentID
	FilePath     string
	Code         string
	HasCode      bool
	Pipeline     string
	SideEffects  bool
	Query        string
	Transformers TransformerSet
}

// AssetOutput is an AssetRequest's result.
type AssetOutput struct {
	Asset        TransformedAsset
	Dependencies []DependencySpec
}

func (r AssetRequest) ID() tracker.RequestID {
	return tracker.HashRequest(discriminantAsset, struct {
		Env         graph.EnvironmentID
		FilePath    string
		Code        string
		HasCode     bool
		Pipeline    string
		SideEffects bool
		Query       string
	}{r.Env, r.FilePath, r.Code, r.HasCode, r.Pipeline, r.SideEffects, r.Query})
}

func (r AssetRequest) Run(ctx *tracker.RunContext) (any, []string, error) {
	ctx.Reporter().ReportProgress(fmt.Sprintf("building %s", r.FilePath))

	names := ctx.Plugins().Transformers(r.FilePath, r.Pipeline)
	assetType := assetTypeFromExtension(r.FilePath)

	input := TransformInput{
		FilePath:    r.FilePath,
		Code:        r.Code,
		HasCode:     r.HasCode,
		Env:         r.Env,
		SideEffects: r.SideEffects,
		Type:        assetType,
	}

	result, invalidations, err := r.runPipeline(ctx, names, input, assetType)
	if err != nil {
		return nil, invalidations, err
	}

	return AssetOutput{Asset: result.Asset, Dependencies: result.Dependencies}, invalidations, nil
}

// runPipeline mirrors asset_request.rs's run_pipeline: it runs each
// transformer in turn, and if a transformer's output changed the asset's
// type from the pipeline's own originalType, it looks up a fresh pipeline
// for the transformed asset's file path and, if that pipeline is a
// genuinely different set of plugins, restarts from there instead of
// continuing the stale one. Dependencies and invalidations gathered before
// the switch are kept in the final result.
func (r AssetRequest) runPipeline(ctx *tracker.RunContext, names []string, input TransformInput, originalType graph.AssetType) (TransformResult, []string, error) {
	transformers, err := r.resolvePipeline(names)
	if err != nil {
		return TransformResult{}, nil, err
	}
	pipelineHash := hashPipeline(names)

	var dependencies []DependencySpec
	var invalidations []string
	cur := input

	for _, t := range transformers {
		out, diagErr := t.Transform(&TransformContext{FS: ctx.FS()}, cur)
		if diagErr != nil {
			return TransformResult{}, invalidations, fmt.Errorf("%s", diagErr.Message)
		}

		isDifferentType := out.Asset.Type != originalType
		nextInput := TransformInput{Asset: &out.Asset}

		if isDifferentType {
			nextNames := ctx.Plugins().Transformers(out.Asset.FilePath, "")
			if hashPipeline(nextNames) != pipelineHash {
				res, inv, err := r.runPipeline(ctx, nextNames, nextInput, out.Asset.Type)
				dependencies = append(dependencies, out.Dependencies...)
				invalidations = append(invalidations, out.InvalidateOnFileChange...)
				res.Dependencies = append(dependencies, res.Dependencies...)
				return res, append(invalidations, inv...), err
			}
		}

		dependencies = append(dependencies, out.Dependencies...)
		invalidations = append(invalidations, out.InvalidateOnFileChange...)
		cur = nextInput
	}

	if cur.Asset == nil {
		return TransformResult{}, invalidations, fmt.Errorf("no transformations applied for %s", input.FilePath)
	}
	return TransformResult{Asset: *cur.Asset, Dependencies: dependencies}, invalidations, nil
}

// resolvePipeline looks up each named plugin in r.Transformers, falling
// back to ESBuildTransformer when no transformer names matched at all
// (the default, always-runnable end-to-end pipeline).
func (r AssetRequest) resolvePipeline(names []string) ([]Transformer, error) {
	if len(names) == 0 {
		return []Transformer{ESBuildTransformer{}}, nil
	}
	out := make([]Transformer, 0, len(names))
	for _, name := range names {
		t, ok := r.Transformers[name]
		if !ok {
			return nil, &plugins.NotFoundError{Path: r.FilePath, Phase: "transformer", Pipeline: name}
		}
		out = append(out, t)
	}
	return out, nil
}

func hashPipeline(names []string) string {
	return strings.Join(names, "\x00")
}
