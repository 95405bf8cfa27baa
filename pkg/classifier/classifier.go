// Package classifier maps an uploaded file's MIME type and filename to a
// file category. Classification is a pure, total function over immutable
// pattern tables; strategy resolution consumes its output.
package classifier

import (
	"path/filepath"
	"strings"

	"github.com/loomchat/attachment-backend/pkg/types"
)

// mimePrefixes match when the MIME type starts with the pattern.
var mimePrefixes = []struct {
	prefix   string
	category types.FileCategory
}{
	{"image/", types.ImageCategory},
	{"audio/", types.AudioCategory},
	{"video/", types.VideoCategory},
}

// mimeMarkers match when the MIME type contains the pattern. Checked in
// order, so the more specific spreadsheet and archive markers come before
// the generic document ones.
var mimeMarkers = []struct {
	marker   string
	category types.FileCategory
}{
	{"vnd.ms-excel", types.SpreadsheetCategory},
	{"spreadsheetml", types.SpreadsheetCategory},
	{"vnd.oasis.opendocument.spreadsheet", types.SpreadsheetCategory},
	{"text/csv", types.SpreadsheetCategory},
	{"text/tab-separated-values", types.SpreadsheetCategory},

	{"application/zip", types.ArchiveCategory},
	{"application/x-tar", types.ArchiveCategory},
	{"application/gzip", types.ArchiveCategory},
	{"application/x-7z-compressed", types.ArchiveCategory},
	{"application/x-rar-compressed", types.ArchiveCategory},

	{"application/javascript", types.CodeCategory},
	{"application/typescript", types.CodeCategory},
	{"application/x-python", types.CodeCategory},
	{"application/x-sh", types.CodeCategory},
	{"application/json", types.CodeCategory},
	{"application/x-yaml", types.CodeCategory},
	{"application/x-ipynb", types.CodeCategory},
	{"text/x-", types.CodeCategory},

	{"application/pdf", types.DocumentCategory},
	{"application/msword", types.DocumentCategory},
	{"wordprocessingml", types.DocumentCategory},
	{"vnd.oasis.opendocument.text", types.DocumentCategory},
	{"application/rtf", types.DocumentCategory},
	{"application/epub", types.DocumentCategory},
	{"presentationml", types.DocumentCategory},
	{"vnd.ms-powerpoint", types.DocumentCategory},
}

// extensionTable is the fallback lookup when no MIME pattern matched.
var extensionTable = map[string]types.FileCategory{
	".png":  types.ImageCategory,
	".jpg":  types.ImageCategory,
	".jpeg": types.ImageCategory,
	".gif":  types.ImageCategory,
	".webp": types.ImageCategory,
	".svg":  types.ImageCategory,
	".heic": types.ImageCategory,

	".csv":  types.SpreadsheetCategory,
	".tsv":  types.SpreadsheetCategory,
	".xls":  types.SpreadsheetCategory,
	".xlsx": types.SpreadsheetCategory,
	".ods":  types.SpreadsheetCategory,

	".py":    types.CodeCategory,
	".js":    types.CodeCategory,
	".ts":    types.CodeCategory,
	".go":    types.CodeCategory,
	".rb":    types.CodeCategory,
	".rs":    types.CodeCategory,
	".java":  types.CodeCategory,
	".c":     types.CodeCategory,
	".cpp":   types.CodeCategory,
	".h":     types.CodeCategory,
	".cs":    types.CodeCategory,
	".php":   types.CodeCategory,
	".sh":    types.CodeCategory,
	".sql":   types.CodeCategory,
	".json":  types.CodeCategory,
	".yaml":  types.CodeCategory,
	".yml":   types.CodeCategory,
	".toml":  types.CodeCategory,
	".ipynb": types.CodeCategory,

	".pdf":  types.DocumentCategory,
	".doc":  types.DocumentCategory,
	".docx": types.DocumentCategory,
	".odt":  types.DocumentCategory,
	".rtf":  types.DocumentCategory,
	".txt":  types.DocumentCategory,
	".md":   types.DocumentCategory,
	".epub": types.DocumentCategory,
	".ppt":  types.DocumentCategory,
	".pptx": types.DocumentCategory,

	".mp3":  types.AudioCategory,
	".wav":  types.AudioCategory,
	".ogg":  types.AudioCategory,
	".m4a":  types.AudioCategory,
	".flac": types.AudioCategory,

	".mp4":  types.VideoCategory,
	".mov":  types.VideoCategory,
	".avi":  types.VideoCategory,
	".mkv":  types.VideoCategory,
	".webm": types.VideoCategory,

	".zip": types.ArchiveCategory,
	".tar": types.ArchiveCategory,
	".gz":  types.ArchiveCategory,
	".tgz": types.ArchiveCategory,
	".7z":  types.ArchiveCategory,
	".rar": types.ArchiveCategory,
}

// Classify maps (mimetype, filename) to a category. The resolution order is
// MIME prefix tables, MIME marker tables, extension table, then the text/*
// fallback to DOCUMENT. It always returns a category and performs no I/O.
func Classify(mimetype, filename string) types.FileCategory {
	mt := strings.ToLower(strings.TrimSpace(mimetype))
	// Strip parameters such as "; charset=utf-8".
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}

	for _, p := range mimePrefixes {
		if strings.HasPrefix(mt, p.prefix) {
			return p.category
		}
	}
	for _, m := range mimeMarkers {
		if strings.Contains(mt, m.marker) {
			return m.category
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if category, ok := extensionTable[ext]; ok {
		return category
	}

	if strings.HasPrefix(mt, "text/") {
		return types.DocumentCategory
	}
	return types.UnknownCategory
}

// Extension returns the lower-cased filename extension including the dot, or
// an empty string when the filename has none.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
