package storage

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestImageDimensions(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 7, 11)))
	c.Assert(err, qt.IsNil)

	w, h := ImageDimensions(buf.Bytes())
	c.Assert(w, qt.IsNotNil)
	c.Assert(h, qt.IsNotNil)
	c.Check(*w, qt.Equals, 7)
	c.Check(*h, qt.Equals, 11)
}

func TestImageDimensions_NotAnImage(t *testing.T) {
	c := qt.New(t)

	w, h := ImageDimensions([]byte("definitely not an image"))
	c.Check(w, qt.IsNil)
	c.Check(h, qt.IsNil)
}
