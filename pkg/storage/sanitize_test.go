package storage

import (
	"strings"
	"testing"
	"unicode/utf8"

	qt "github.com/frankban/quicktest"
)

func TestSanitizeFilename(t *testing.T) {
	c := qt.New(t)

	testcases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain name", in: "report.pdf", want: "report.pdf"},
		{name: "path traversal", in: "../../etc/passwd", want: "passwd"},
		{name: "windows path", in: `C:\Users\x\notes.txt`, want: "notes.txt"},
		{name: "url breaking characters", in: "a#b?c%d.txt", want: "a_b_c_d.txt"},
		{name: "control characters", in: "bad\x00name\n.csv", want: "bad_name_.csv"},
		{name: "empty", in: "", want: "unnamed"},
		{name: "dot", in: ".", want: "unnamed"},
		{name: "dot dot", in: "..", want: "unnamed"},
		{name: "unicode preserved", in: "résumé.pdf", want: "résumé.pdf"},
	}

	for _, tc := range testcases {
		c.Run(tc.name, func(c *qt.C) {
			c.Check(SanitizeFilename(tc.in), qt.Equals, tc.want)
		})
	}
}

func TestSanitizeFilename_TruncatesKeepingExtension(t *testing.T) {
	c := qt.New(t)

	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFilename(long)
	c.Check(len(got) <= maxFilenameLength, qt.IsTrue)
	c.Check(strings.HasSuffix(got, ".pdf"), qt.IsTrue)
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	c := qt.New(t)

	// Three-byte runes guarantee the byte limit lands mid-rune.
	long := strings.Repeat("日", 100) + ".txt"
	got := SanitizeFilename(long)
	c.Check(len(got) <= maxFilenameLength, qt.IsTrue)
	c.Check(strings.HasSuffix(got, ".txt"), qt.IsTrue)
	c.Check(utf8.ValidString(got), qt.IsTrue)
}
