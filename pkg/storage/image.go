package storage

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageDimensions probes the pixel dimensions of an image without decoding
// the full bitmap. It returns nil values when the content is not a
// recognized image format.
func ImageDimensions(content []byte) (width, height *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, nil
	}
	return &cfg.Width, &cfg.Height
}
