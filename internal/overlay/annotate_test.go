package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/stitcher"
)

var white = color.RGBA{255, 255, 255, 255}

func blankPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)
	return img
}

func TestAnnotateOutlinesSections(t *testing.T) {
	src := blankPage(400, 600)
	sections := []model.Section{
		{Type: "header", Bounds: model.Bounds{X: 0, Y: 0, Width: 400, Height: 100}},
		{Type: "footer", Bounds: model.Bounds{X: 0, Y: -200, Width: 400, Height: 100, Left: 0, Top: 500}},
		{Type: "card", Bounds: model.Bounds{}},
	}

	out := Annotate(src, sections)
	require.Equal(t, src.Bounds(), out.Bounds())

	assert.Equal(t, ColorFor("header"), out.RGBAAt(200, 0), "top edge of the header")
	assert.Equal(t, ColorFor("header"), out.RGBAAt(399, 50), "right edge of the header")
	assert.Equal(t, white, out.RGBAAt(200, 50), "inside is untouched")

	assert.Equal(t, ColorFor("footer"), out.RGBAAt(200, 599), "footer drawn at its scroll-adjusted top")
	assert.Equal(t, white, out.RGBAAt(200, 300))

	assert.Equal(t, white, src.RGBAAt(200, 0), "the source image is not modified")
}

func TestAnnotateSectionsDataURL(t *testing.T) {
	dataURL, err := stitcher.EncodeDataURL(blankPage(100, 100))
	require.NoError(t, err)

	out, err := AnnotateSections(dataURL, []model.Section{
		{Type: "unknown-type", Bounds: model.Bounds{X: 10, Y: 10, Width: 50, Height: 50}},
	})
	require.NoError(t, err)

	img, err := stitcher.DecodeImage(out)
	require.NoError(t, err)
	r, g, b, _ := img.At(30, 10).RGBA()
	want := ColorFor("unknown-type")
	assert.Equal(t, uint32(want.R), r>>8)
	assert.Equal(t, uint32(want.G), g>>8)
	assert.Equal(t, uint32(want.B), b>>8)

	_, err = AnnotateSections("not a data url", nil)
	assert.Error(t, err)
}

func TestDrawLineClipsToBounds(t *testing.T) {
	img := blankPage(10, 10)
	assert.NotPanics(t, func() {
		drawLine(img, -5, -5, 20, 20, fallbackColor)
	})
	assert.Equal(t, fallbackColor, img.RGBAAt(5, 5))
}
