package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Ikomia-dev/infer-transunet/internal/pipeline"
)

// LabelImage encodes a label map as an 8-bit grayscale image, one class
// index per pixel, for the host's mask output slot.
func LabelImage(labels *pipeline.LabelMap) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, labels.Width, labels.Height))
	copy(img.Pix, labels.Classes)
	return img
}

// Overlay blends the color-mapped label map over the source image at equal
// weight, the host's "forward the input with the color map applied" output.
func Overlay(src image.Image, labels *pipeline.LabelMap, colors []Color) (*image.RGBA, error) {
	bounds := src.Bounds()
	if labels.Width != bounds.Dx() || labels.Height != bounds.Dy() {
		return nil, fmt.Errorf("%w: label map is %dx%d, source is %dx%d",
			ErrInvalidInput, labels.Width, labels.Height, bounds.Dx(), bounds.Dy())
	}

	out := image.NewRGBA(image.Rect(0, 0, labels.Width, labels.Height))
	for y := 0; y < labels.Height; y++ {
		for x := 0; x < labels.Width; x++ {
			cls := int(labels.At(x, y))
			if cls >= len(colors) {
				return nil, fmt.Errorf("%w: class %d has no color map entry", ErrInvalidInput, cls)
			}
			c := colors[cls]
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.SetRGBA(x, y, color.RGBA{
				R: uint8((uint32(c.R) + r>>8) / 2),
				G: uint8((uint32(c.G) + g>>8) / 2),
				B: uint8((uint32(c.B) + b>>8) / 2),
				A: 255,
			})
		}
	}
	return out, nil
}
