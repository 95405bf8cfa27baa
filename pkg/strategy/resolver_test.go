package strategy

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/loomchat/attachment-backend/pkg/types"
)

func TestResolve_Table(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		category    types.FileCategory
		primary     types.Strategy
		background  []types.Strategy
		shouldEmbed bool
		resource    types.ToolResource
	}{
		{types.ImageCategory, types.ImageStrategy, nil, false, types.ImageResource},
		{types.DocumentCategory, types.FileSearchStrategy, nil, true, types.FileSearchResource},
		{types.SpreadsheetCategory, types.CodeExecutorStrategy, []types.Strategy{types.FileSearchStrategy}, true, types.CodeExecutorResource},
		{types.CodeCategory, types.CodeExecutorStrategy, []types.Strategy{types.FileSearchStrategy}, true, types.CodeExecutorResource},
		{types.AudioCategory, types.TextContextStrategy, []types.Strategy{types.FileSearchStrategy}, true, types.ContextResource},
		{types.VideoCategory, types.ProviderStrategy, nil, false, types.ImageResource},
		{types.ArchiveCategory, types.ProviderStrategy, nil, false, types.CodeExecutorResource},
		{types.UnknownCategory, types.FileSearchStrategy, nil, true, types.FileSearchResource},
	}

	for _, tt := range tests {
		c.Run(string(tt.category), func(c *qt.C) {
			bundle := Resolve(tt.category, nil)
			c.Check(bundle.Category, qt.Equals, tt.category)
			c.Check(bundle.PrimaryStrategy, qt.Equals, tt.primary)
			c.Check(bundle.BackgroundStrategies, qt.DeepEquals, tt.background)
			c.Check(bundle.ShouldEmbed, qt.Equals, tt.shouldEmbed)
			c.Check(bundle.ToolResource, qt.Equals, tt.resource)
			c.Check(bundle.UserOverride, qt.IsFalse)
		})
	}
}

func TestResolve_ExplicitOverrideWins(t *testing.T) {
	c := qt.New(t)

	resource := types.FileSearchResource
	for _, category := range []types.FileCategory{
		types.ImageCategory,
		types.CodeCategory,
		types.VideoCategory,
		types.UnknownCategory,
	} {
		bundle := Resolve(category, &resource)
		c.Check(bundle.ToolResource, qt.Equals, types.FileSearchResource, qt.Commentf("category %q", category))
		c.Check(bundle.PrimaryStrategy, qt.Equals, types.FileSearchStrategy)
		c.Check(bundle.UserOverride, qt.IsTrue)
		c.Check(bundle.Category, qt.Equals, category)
	}
}

func TestResolve_UnknownResourceFallsBack(t *testing.T) {
	c := qt.New(t)

	bogus := types.ToolResource("retrieval")
	bundle := Resolve(types.DocumentCategory, &bogus)
	c.Check(bundle.PrimaryStrategy, qt.Equals, types.FileSearchStrategy)
	c.Check(bundle.UserOverride, qt.IsFalse)
}

func TestBundleStrategies(t *testing.T) {
	c := qt.New(t)

	bundle := Resolve(types.SpreadsheetCategory, nil)
	c.Check(bundle.Strategies(), qt.DeepEquals, []types.Strategy{
		types.CodeExecutorStrategy,
		types.FileSearchStrategy,
	})
}

func TestTableIntentClassifier(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		filename    string
		mimetype    string
		codeEnabled bool
		expected    types.UploadIntent
	}{
		{"csv with code execution", "data.csv", "text/csv", true, types.CodeIntent},
		{"csv without code execution", "data.csv", "text/csv", false, types.SearchIntent},
		{"pdf document", "report.pdf", "application/pdf", true, types.SearchIntent},
		{"image", "photo.png", "image/png", true, types.ProviderIntent},
		{"notebook", "analysis.ipynb", "application/octet-stream", true, types.CodeIntent},
	}

	var ic TableIntentClassifier
	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			intent, err := ic.Infer(ctx, tt.filename, tt.mimetype, tt.codeEnabled)
			c.Assert(err, qt.IsNil)
			c.Check(intent, qt.Equals, tt.expected)
		})
	}
}

func TestProgrammaticExtensions(t *testing.T) {
	c := qt.New(t)

	c.Check(IsProgrammaticExtension(".csv"), qt.IsTrue)
	c.Check(IsProgrammaticExtension(".ipynb"), qt.IsTrue)
	c.Check(IsProgrammaticExtension(".pdf"), qt.IsFalse)
	c.Check(IsCodeSuitableExtension(".txt"), qt.IsTrue)
	c.Check(IsCodeSuitableExtension(".png"), qt.IsFalse)
}
