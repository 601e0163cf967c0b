package capture

import (
	"image"

	"golang.org/x/image/draw"
)

// downsample scales a frame to the preview size. ApproxBiLinear is the
// cheapest scaler that still looks acceptable at ~30 previews/second.
func downsample(src image.Image, width, height int) image.Image {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
