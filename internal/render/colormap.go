// Package render turns label maps into the images the host displays: the
// grayscale mask, the color-mapped overlay and the class legend.
package render

import "math/rand"

// DefaultSeed is the fixed color seed, shared with the training-side
// tooling so masks keep the same colors from run to run.
const DefaultSeed = 10

// Color is one RGBA color map entry. Every entry carries an explicit opaque
// alpha, the background included.
type Color struct {
	R, G, B, A uint8
}

// BuildColorMap assigns one color per class index. Entry 0 is always opaque
// black for the background; the remaining entries are drawn sequentially
// from a generator seeded with seed, so identical seed and class count
// reproduce the exact same map.
func BuildColorMap(numClasses int, seed int64) []Color {
	if numClasses <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	colors := make([]Color, 0, numClasses)
	colors = append(colors, Color{0, 0, 0, 255})
	for i := 1; i < numClasses; i++ {
		colors = append(colors, Color{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		})
	}
	return colors
}
