// Package overlay draws section outlines onto full-page screenshots.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/stitcher"
)

// BorderWidth is the outline thickness in pixels
const BorderWidth = 3

// badgeRadius is the radius of the marker drawn at each section's corner
const badgeRadius = 8

var palette = map[string]color.RGBA{
	"header":       {66, 133, 244, 255}, // blue
	"navigation":   {52, 168, 83, 255},  // green
	"main-content": {251, 188, 5, 255},  // amber
	"footer":       {154, 160, 166, 255},
	"sidebar":      {171, 71, 188, 255},
	"hero":         {234, 67, 53, 255},
	"card":         {0, 172, 193, 255},
	"form":         {255, 112, 67, 255},
}

var fallbackColor = color.RGBA{233, 30, 99, 255}

// ColorFor returns the outline colour used for a section type.
func ColorFor(sectionType string) color.RGBA {
	if c, ok := palette[sectionType]; ok {
		return c
	}
	return fallbackColor
}

// AnnotateSections decodes a screenshot data URL, outlines every section
// with a non-empty box and returns the result as a PNG data URL.
func AnnotateSections(dataURL string, sections []model.Section) (string, error) {
	src, err := stitcher.DecodeImage(dataURL)
	if err != nil {
		return "", err
	}
	return stitcher.EncodeDataURL(Annotate(src, sections))
}

// Annotate draws the section outlines onto a copy of img.
func Annotate(img image.Image, sections []model.Section) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)

	// Copy original frame
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, s := range sections {
		r, ok := sectionRect(s)
		if !ok {
			continue
		}
		c := ColorFor(s.Type)
		drawRect(result, r, c)
		drawBadge(result, r.Min.X, r.Min.Y, c)
	}
	return result
}

// sectionRect converts page-absolute section bounds to pixels. Sections
// without a scroll-adjusted box fall back to their viewport box.
func sectionRect(s model.Section) (image.Rectangle, bool) {
	b := s.Bounds
	if b.Width <= 0 || b.Height <= 0 {
		return image.Rectangle{}, false
	}
	left, top := b.Left, b.Top
	if left == 0 && top == 0 {
		left, top = b.X, b.Y
	}
	x0, y0 := int(math.Round(left)), int(math.Round(top))
	return image.Rect(x0, y0, x0+int(math.Round(b.Width)), y0+int(math.Round(b.Height))), true
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for i := 0; i < BorderWidth; i++ {
		x1, y1 := r.Min.X+i, r.Min.Y+i
		x2, y2 := r.Max.X-1-i, r.Max.Y-1-i
		if x1 > x2 || y1 > y2 {
			return
		}
		drawLine(img, x1, y1, x2, y1, c)
		drawLine(img, x2, y1, x2, y2, c)
		drawLine(img, x2, y2, x1, y2, c)
		drawLine(img, x1, y2, x1, y1, c)
	}
}

// drawBadge fills a circle centred on the section's top-left corner
func drawBadge(img *image.RGBA, x, y int, c color.RGBA) {
	for dy := -badgeRadius; dy <= badgeRadius; dy++ {
		for dx := -badgeRadius; dx <= badgeRadius; dx++ {
			if dx*dx+dy*dy <= badgeRadius*badgeRadius {
				setPixelSafe(img, x+dx, y+dy, c)
			}
		}
	}
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
