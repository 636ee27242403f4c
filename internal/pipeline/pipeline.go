// Package pipeline runs one forward inference pass: resize, normalize, pack,
// predict, decode, upsample. All numeric contracts of the model live here.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/Ikomia-dev/infer-transunet/internal/config"
	"github.com/Ikomia-dev/infer-transunet/internal/model"
)

// ErrInput reports a source image the pipeline cannot consume.
var ErrInput = errors.New("invalid input image")

// ImageNet channel statistics in RGB order, matching the inputs the
// pretrained encoder was trained on.
var (
	imagenetMean = [3]float32{123.675, 116.280, 103.530}
	imagenetStd  = [3]float32{58.395, 57.120, 57.375}
)

// LabelMap holds per-pixel class indices at the source image resolution,
// row-major, len(Classes) == Width*Height.
type LabelMap struct {
	Width   int
	Height  int
	Classes []uint8
}

// At returns the class index at (x, y).
func (m *LabelMap) At(x, y int) uint8 {
	return m.Classes[y*m.Width+x]
}

// Infer produces a label map for src using net. The output always has the
// source image's dimensions and every value is below cfg.NClasses.
func Infer(net model.Network, cfg *config.Config, src image.Image) (*LabelMap, error) {
	if err := validate(src); err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	size := cfg.ImgSize

	// Bicubic keeps the smooth gradients the encoder expects on the way
	// down; labels go back up with nearest-neighbor only.
	small := resize.Resize(uint(size), uint(size), src, resize.Bicubic)

	input := packNCHW(small, size)
	if cfg.Normalize() {
		input = normalize(input, size)
	}

	logits, err := net.Forward(input)
	if err != nil {
		return nil, err
	}
	plane := size * size
	if len(logits) != cfg.NClasses*plane {
		return nil, fmt.Errorf("model produced %d logits, want %d (n_classes=%d, img_size=%d): model and config are inconsistent",
			len(logits), cfg.NClasses*plane, cfg.NClasses, size)
	}

	labels := argmax(logits, cfg.NClasses, plane)
	return upsample(labels, size, w, h), nil
}

func validate(src image.Image) error {
	if src == nil {
		return fmt.Errorf("%w: no image", ErrInput)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return fmt.Errorf("%w: empty image", ErrInput)
	}
	switch src.(type) {
	case *image.RGBA, *image.NRGBA, *image.YCbCr:
		return nil
	case *image.Gray, *image.Gray16, *image.Paletted:
		return fmt.Errorf("%w: expected a 3-channel color image, got %T", ErrInput, src)
	case *image.RGBA64, *image.NRGBA64:
		return fmt.Errorf("%w: expected 8-bit pixel data, got %T", ErrInput, src)
	default:
		return fmt.Errorf("%w: unsupported image type %T", ErrInput, src)
	}
}

// packNCHW lays the image out as planar RGB float32 in the 0..255 range.
func packNCHW(img image.Image, size int) []float32 {
	plane := size * size
	data := make([]float32, 3*plane)
	bounds := img.Bounds()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			p := y*size + x
			data[p] = float32(r >> 8)
			data[plane+p] = float32(g >> 8)
			data[2*plane+p] = float32(b >> 8)
		}
	}
	return data
}

// normalize applies per-channel ImageNet mean/std. It returns a new buffer;
// the input is left untouched.
func normalize(input []float32, size int) []float32 {
	plane := size * size
	out := make([]float32, len(input))
	for ch := 0; ch < 3; ch++ {
		mean, std := imagenetMean[ch], imagenetStd[ch]
		for p := 0; p < plane; p++ {
			out[ch*plane+p] = (input[ch*plane+p] - mean) / std
		}
	}
	return out
}

// argmax picks the winning class per pixel. The reference pipeline applies a
// softmax first; argmax is invariant under softmax, so the logits are
// compared directly.
func argmax(logits []float32, numClasses, plane int) []uint8 {
	labels := make([]uint8, plane)
	for p := 0; p < plane; p++ {
		best := 0
		bestVal := logits[p]
		for c := 1; c < numClasses; c++ {
			if v := logits[c*plane+p]; v > bestVal {
				best = c
				bestVal = v
			}
		}
		labels[p] = uint8(best)
	}
	return labels
}

// upsample scales the label map back to the source resolution. Class indices
// are discrete, so only nearest-neighbor sampling is valid here.
func upsample(labels []uint8, size, w, h int) *LabelMap {
	src := &image.Gray{Pix: labels, Stride: size, Rect: image.Rect(0, 0, size, size)}
	resized := resize.Resize(uint(w), uint(h), src, resize.NearestNeighbor)

	out := make([]uint8, w*h)
	if gray, ok := resized.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			copy(out[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
	} else {
		bounds := resized.Bounds()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				out[y*w+x] = g.Y
			}
		}
	}
	return &LabelMap{Width: w, Height: h, Classes: out}
}
