// Package strategy resolves a classified file into its processing strategy
// bundle: one primary strategy, optional background strategies, the embed
// flag and the tool resource the file is bound to.
package strategy

import (
	"github.com/loomchat/attachment-backend/pkg/types"
)

// Bundle is the output of strategy resolution for one file.
type Bundle struct {
	Category             types.FileCategory
	PrimaryStrategy      types.Strategy
	BackgroundStrategies []types.Strategy
	ShouldEmbed          bool
	ToolResource         types.ToolResource
	// UserOverride records that an explicit tool resource from the caller
	// replaced the inferred bundle.
	UserOverride bool
}

// Strategies returns the primary strategy followed by the background ones.
func (b Bundle) Strategies() []types.Strategy {
	out := make([]types.Strategy, 0, 1+len(b.BackgroundStrategies))
	out = append(out, b.PrimaryStrategy)
	out = append(out, b.BackgroundStrategies...)
	return out
}

// categoryBundles is the fixed category → bundle table. Background
// strategies piggyback semantic indexing onto files whose primary
// consumption path is elsewhere (code execution, inline context).
var categoryBundles = map[types.FileCategory]Bundle{
	types.ImageCategory: {
		PrimaryStrategy: types.ImageStrategy,
		ShouldEmbed:     false,
		ToolResource:    types.ImageResource,
	},
	types.SpreadsheetCategory: {
		PrimaryStrategy:      types.CodeExecutorStrategy,
		BackgroundStrategies: []types.Strategy{types.FileSearchStrategy},
		ShouldEmbed:          true,
		ToolResource:         types.CodeExecutorResource,
	},
	types.CodeCategory: {
		PrimaryStrategy:      types.CodeExecutorStrategy,
		BackgroundStrategies: []types.Strategy{types.FileSearchStrategy},
		ShouldEmbed:          true,
		ToolResource:         types.CodeExecutorResource,
	},
	types.DocumentCategory: {
		PrimaryStrategy: types.FileSearchStrategy,
		ShouldEmbed:     true,
		ToolResource:    types.FileSearchResource,
	},
	types.AudioCategory: {
		PrimaryStrategy:      types.TextContextStrategy,
		BackgroundStrategies: []types.Strategy{types.FileSearchStrategy},
		ShouldEmbed:          true,
		ToolResource:         types.ContextResource,
	},
	types.VideoCategory: {
		PrimaryStrategy: types.ProviderStrategy,
		ShouldEmbed:     false,
		ToolResource:    types.ImageResource,
	},
	types.ArchiveCategory: {
		PrimaryStrategy: types.ProviderStrategy,
		ShouldEmbed:     false,
		ToolResource:    types.CodeExecutorResource,
	},
	types.UnknownCategory: {
		PrimaryStrategy: types.FileSearchStrategy,
		ShouldEmbed:     true,
		ToolResource:    types.FileSearchResource,
	},
}

// resourceBundles maps an explicit tool resource to the bundle it forces.
var resourceBundles = map[types.ToolResource]Bundle{
	types.FileSearchResource: {
		PrimaryStrategy: types.FileSearchStrategy,
		ShouldEmbed:     true,
		ToolResource:    types.FileSearchResource,
	},
	types.CodeExecutorResource: {
		PrimaryStrategy:      types.CodeExecutorStrategy,
		BackgroundStrategies: []types.Strategy{types.FileSearchStrategy},
		ShouldEmbed:          true,
		ToolResource:         types.CodeExecutorResource,
	},
	types.ImageResource: {
		PrimaryStrategy: types.ImageStrategy,
		ShouldEmbed:     false,
		ToolResource:    types.ImageResource,
	},
	types.ContextResource: {
		PrimaryStrategy: types.TextContextStrategy,
		ShouldEmbed:     true,
		ToolResource:    types.ContextResource,
	},
}

// Resolve returns the strategy bundle for a category. An explicit tool
// resource always wins over the inferred bundle and flips UserOverride.
func Resolve(category types.FileCategory, explicit *types.ToolResource) Bundle {
	if explicit != nil {
		if bundle, ok := resourceBundles[*explicit]; ok {
			bundle.Category = category
			bundle.UserOverride = true
			return bundle
		}
	}
	bundle, ok := categoryBundles[category]
	if !ok {
		bundle = categoryBundles[types.UnknownCategory]
	}
	bundle.Category = category
	return bundle
}

// ResourceForIntent maps an inferred upload intent to a tool resource,
// letting Resolve treat the inference result like an explicit override
// (without flipping UserOverride at the call site).
func ResourceForIntent(intent types.UploadIntent) types.ToolResource {
	switch intent {
	case types.CodeIntent:
		return types.CodeExecutorResource
	case types.SearchIntent:
		return types.FileSearchResource
	default:
		return types.ImageResource
	}
}
