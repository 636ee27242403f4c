package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidInput reports render inputs that cannot be drawn.
var ErrInvalidInput = errors.New("invalid render input")

const (
	legendSize    = 1000
	maxRectHeight = 100
	rectOffsetX   = 10
	rectOffsetY   = 5
	interline     = 5
)

// Legend draws one color swatch and class name per class, top to bottom in
// class-index order, on a white 1000x1000 canvas. Pure: identical inputs
// produce a byte-identical image.
func Legend(colors []Color, classNames []string) (*image.RGBA, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: empty color map", ErrInvalidInput)
	}
	if len(colors) != len(classNames) {
		return nil, fmt.Errorf("%w: %d colors for %d class names", ErrInvalidInput, len(colors), len(classNames))
	}

	img := image.NewRGBA(image.Rect(0, 0, legendSize, legendSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	rectHeight := legendSize / len(colors)
	if rectHeight > maxRectHeight {
		rectHeight = maxRectHeight
	}
	rectWidth := legendSize / 3

	for i, c := range colors {
		rect := image.Rect(
			rectOffsetX, i*rectHeight+rectOffsetY+interline,
			rectOffsetX+rectWidth, (i+1)*rectHeight+rectOffsetY-interline,
		)
		fill := color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
		draw.Draw(img, rect, image.NewUniform(fill), image.Point{}, draw.Src)

		baseline := (i+1)*rectHeight + rectOffsetY - interline - rectHeight/3
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(3*rectOffsetX+rectWidth, baseline),
		}
		drawer.DrawString(classNames[i])
	}
	return img, nil
}
