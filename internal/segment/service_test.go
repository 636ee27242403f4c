package segment_test

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ikomia-dev/infer-transunet/internal/config"
	"github.com/Ikomia-dev/infer-transunet/internal/pipeline"
	"github.com/Ikomia-dev/infer-transunet/internal/segment"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sourceImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(2 * x), uint8(2 * y), 128, 255})
		}
	}
	return img
}

// End to end over the real pipeline: no weight file on disk, so the run
// uses the randomly initialized network.
func TestRunWithoutWeightFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
img_size: 256
n_classes: 3
class_names: [bg, cat, dog]
`)
	svc := segment.NewService(cfgPath, filepath.Join(dir, "missing.onnx"))
	defer svc.Close()

	res, err := svc.Run(sourceImage(512, 384))
	require.NoError(t, err)

	assert.Equal(t, 512, res.Mask.Bounds().Dx())
	assert.Equal(t, 384, res.Mask.Bounds().Dy())
	for i, v := range res.Mask.Pix {
		if v > 2 {
			t.Fatalf("mask value %d at index %d outside {0,1,2}", v, i)
		}
	}
	assert.Equal(t, 512, res.Overlay.Bounds().Dx())
	assert.Equal(t, 384, res.Overlay.Bounds().Dy())
	assert.Equal(t, 1000, res.Legend.Bounds().Dx())
	assert.Equal(t, 1000, res.Legend.Bounds().Dy())
	assert.Equal(t, []string{"bg", "cat", "dog"}, res.Classes)
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
img_size: 64
n_classes: 2
class_names: [bg, cat]
`)
	svc := segment.NewService(cfgPath, filepath.Join(dir, "missing.onnx"))
	defer svc.Close()

	src := sourceImage(100, 80)
	first, err := svc.Run(src)
	require.NoError(t, err)
	second, err := svc.Run(src)
	require.NoError(t, err)

	assert.Equal(t, first.Mask.Pix, second.Mask.Pix)
	assert.Equal(t, first.Legend.Pix, second.Legend.Pix)
}

func TestRunConfigError(t *testing.T) {
	dir := t.TempDir()
	svc := segment.NewService(filepath.Join(dir, "absent.yaml"), filepath.Join(dir, "missing.onnx"))
	defer svc.Close()

	_, err := svc.Run(sourceImage(10, 10))
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestRunInputErrorKeepsCacheUsable(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
img_size: 32
n_classes: 2
class_names: [bg, cat]
`)
	svc := segment.NewService(cfgPath, filepath.Join(dir, "missing.onnx"))
	defer svc.Close()

	_, err := svc.Run(image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, pipeline.ErrInput)

	res, err := svc.Run(sourceImage(10, 10))
	require.NoError(t, err)
	assert.NotNil(t, res.Mask)
}

func TestUpdateReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
img_size: 32
n_classes: 2
class_names: [bg, cat]
`)
	svc := segment.NewService(cfgPath, filepath.Join(dir, "missing.onnx"))
	defer svc.Close()

	res, err := svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat"}, res.Classes)

	// Rewrite the config in place; without Update the old one stays bound.
	writeConfig(t, dir, `
img_size: 32
n_classes: 3
class_names: [bg, cat, dog]
`)
	res, err = svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat"}, res.Classes)

	svc.Update()
	res, err = svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat", "dog"}, res.Classes)
}

func TestSetParamsSwitchesConfig(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeConfig(t, dirA, `
img_size: 32
n_classes: 2
class_names: [bg, cat]
`)
	pathB := writeConfig(t, dirB, `
img_size: 32
n_classes: 2
class_names: [bg, dog]
`)
	svc := segment.NewService(pathA, filepath.Join(dirA, "missing.onnx"))
	defer svc.Close()

	res, err := svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat"}, res.Classes)

	svc.SetParams(pathB, filepath.Join(dirB, "missing.onnx"))
	res, err = svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "dog"}, res.Classes)
}

func TestSetParamsClassCountChangeRebuildsColors(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	pathA := writeConfig(t, dirA, `
img_size: 32
n_classes: 2
class_names: [bg, cat]
`)
	pathB := writeConfig(t, dirB, `
img_size: 32
n_classes: 5
class_names: [bg, cat, dog, bird, fish]
`)
	svc := segment.NewService(pathA, filepath.Join(dirA, "missing.onnx"))
	defer svc.Close()

	_, err := svc.Run(sourceImage(20, 20))
	require.NoError(t, err)

	// Switching to a config with more classes must rebuild the color map
	// alongside the model, or the overlay hits classes with no color entry.
	svc.SetParams(pathB, filepath.Join(dirB, "missing.onnx"))
	res, err := svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat", "dog", "bird", "fish"}, res.Classes)
	for i, v := range res.Mask.Pix {
		if v > 4 {
			t.Fatalf("mask value %d at index %d outside [0, 5)", v, i)
		}
	}

	// And back down: the legend must match the smaller class count again.
	svc.SetParams(pathA, filepath.Join(dirA, "missing.onnx"))
	res, err = svc.Run(sourceImage(20, 20))
	require.NoError(t, err)
	assert.Equal(t, []string{"bg", "cat"}, res.Classes)
}
