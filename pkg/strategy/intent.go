package strategy

import (
	"context"

	"github.com/loomchat/attachment-backend/pkg/classifier"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// IntentClassifier infers the purpose of an agent upload when the caller
// supplies no explicit tool resource. Production deployments may plug in a
// model-backed implementation; the default is table-driven.
type IntentClassifier interface {
	Infer(ctx context.Context, filename, mimetype string, codeEnabled bool) (types.UploadIntent, error)
}

// programmaticExtensions lists formats consumed programmatically by the
// code-execution sandbox. Files routed to the code executor with one of
// these extensions skip text extraction entirely: they are read by code,
// not by semantic search.
var programmaticExtensions = map[string]struct{}{
	".csv": {}, ".tsv": {}, ".xls": {}, ".xlsx": {}, ".ods": {},
	".json": {}, ".jsonl": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".xml": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".7z": {},
	".py": {}, ".js": {}, ".ts": {}, ".go": {}, ".rb": {}, ".rs": {},
	".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".cs": {}, ".php": {},
	".sql": {}, ".ipynb": {},
	".sh": {}, ".bash": {}, ".conf": {}, ".cfg": {}, ".ini": {}, ".env": {},
}

// IsProgrammaticExtension reports whether files with this extension are
// consumed by code rather than by semantic search.
func IsProgrammaticExtension(ext string) bool {
	_, ok := programmaticExtensions[ext]
	return ok
}

// codeSuitableExtensions lists extensions worth mirroring into the
// code-execution sandbox when an agent has code execution enabled.
var codeSuitableExtensions = map[string]struct{}{
	".csv": {}, ".tsv": {}, ".xls": {}, ".xlsx": {}, ".ods": {},
	".json": {}, ".jsonl": {}, ".yaml": {}, ".yml": {}, ".xml": {},
	".py": {}, ".js": {}, ".ts": {}, ".go": {}, ".rb": {}, ".rs": {},
	".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".cs": {}, ".php": {},
	".sql": {}, ".ipynb": {}, ".sh": {},
	".txt": {}, ".md": {}, ".log": {},
}

// IsCodeSuitableExtension reports whether the extension is usable from the
// code-execution sandbox.
func IsCodeSuitableExtension(ext string) bool {
	_, ok := codeSuitableExtensions[ext]
	return ok
}

// TableIntentClassifier is the default IntentClassifier: category and
// extension tables, no I/O.
type TableIntentClassifier struct{}

// Infer classifies the upload into code execution, semantic search or
// provider passthrough.
func (TableIntentClassifier) Infer(_ context.Context, filename, mimetype string, codeEnabled bool) (types.UploadIntent, error) {
	category := classifier.Classify(mimetype, filename)
	ext := classifier.Extension(filename)

	switch category {
	case types.ImageCategory, types.VideoCategory:
		return types.ProviderIntent, nil
	case types.SpreadsheetCategory, types.CodeCategory, types.ArchiveCategory:
		if codeEnabled {
			return types.CodeIntent, nil
		}
		return types.SearchIntent, nil
	default:
		if codeEnabled && IsProgrammaticExtension(ext) {
			return types.CodeIntent, nil
		}
		return types.SearchIntent, nil
	}
}
