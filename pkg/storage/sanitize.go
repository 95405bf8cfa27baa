package storage

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilenameLength = 200

// SanitizeFilename strips path components and control characters from a
// user-supplied filename so it is safe to embed in an object key. The
// extension is preserved when the name has to be truncated.
func SanitizeFilename(filename string) string {
	// Drop any directory components, including Windows-style separators.
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(filename)

	var b strings.Builder
	for _, r := range filename {
		switch {
		case unicode.IsControl(r):
			b.WriteRune('_')
		case r == '/' || r == '#' || r == '?' || r == '%':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	filename = b.String()

	if filename == "" || filename == "." || filename == ".." {
		return "unnamed"
	}

	if len(filename) > maxFilenameLength {
		ext := path.Ext(filename)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		base := filename[:len(filename)-len(ext)]
		cut := maxFilenameLength - len(ext)
		// Back off to a rune boundary so the cut never splits a multi-byte
		// character.
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		filename = base[:cut] + ext
	}

	return filename
}
