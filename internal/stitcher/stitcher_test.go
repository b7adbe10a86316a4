package stitcher

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/routedoc/internal/messaging"
)

var sliceColors = []color.RGBA{
	{R: 255, A: 255},
	{G: 255, A: 255},
	{B: 255, A: 255},
}

// fakePage serves solid-colour viewports, one colour per scroll position.
type fakePage struct {
	dims    messaging.Dimensions
	scale   int
	maxY    float64
	failAt  int
	scrolls []float64
	current float64
	shots   int
}

func (p *fakePage) Dimensions(context.Context) (messaging.Dimensions, error) {
	return p.dims, nil
}

func (p *fakePage) ScrollTo(_ context.Context, y float64) (float64, error) {
	p.scrolls = append(p.scrolls, y)
	p.current = y
	if p.maxY > 0 && y > p.maxY {
		p.current = p.maxY
	}
	return p.current, nil
}

func (p *fakePage) CaptureViewport(context.Context) ([]byte, error) {
	p.shots++
	if p.failAt > 0 && p.shots == p.failAt {
		return nil, errors.New("MAX_CAPTURE_VISIBLE_TAB_CALLS_PER_SECOND quota exceeded")
	}
	scale := max(p.scale, 1)
	w, h := int(p.dims.InnerWidth)*scale, int(p.dims.InnerHeight)*scale
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := sliceColors[(p.shots-1)%len(sliceColors)]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func (r *sleepRecorder) count(d time.Duration) int {
	n := 0
	for _, w := range r.waits {
		if w == d {
			n++
		}
	}
	return n
}

func newTestStitcher(rec *sleepRecorder) *Stitcher {
	t0 := time.Unix(1700000000, 0)
	opts := DefaultOptions()
	opts.Sleep = rec.Sleep
	opts.Now = func() time.Time { return t0 }
	return New(opts)
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []int{0, 800, 1600}, Segments(2000, 800))
	assert.Equal(t, []int{0, 800}, Segments(1600, 800))
	assert.Equal(t, []int{0}, Segments(500, 800), "short page still captures one segment")
	assert.Equal(t, []int{0}, Segments(800, 800))
	assert.Equal(t, []int{0}, Segments(100, 0))
}

func TestCaptureStitchesFullHeight(t *testing.T) {
	page := &fakePage{dims: messaging.Dimensions{ScrollWidth: 40, ScrollHeight: 2000, InnerWidth: 40, InnerHeight: 800}}
	rec := &sleepRecorder{}

	img, err := newTestStitcher(rec).CaptureImage(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 800, 1600}, page.scrolls)
	assert.Equal(t, 3, page.shots)
	assert.Equal(t, image.Rect(0, 0, 40, 2000), img.Bounds())
	assert.Equal(t, sliceColors[0], img.RGBAAt(5, 10))
	assert.Equal(t, sliceColors[1], img.RGBAAt(5, 810))
	assert.Equal(t, sliceColors[2], img.RGBAAt(5, 1999))

	assert.Equal(t, 3, rec.count(300*time.Millisecond), "repaint delay per segment")
	assert.Equal(t, 2, rec.count(500*time.Millisecond), "captures after the first are throttled")
}

func TestCaptureUsesSettledOffset(t *testing.T) {
	page := &fakePage{
		dims: messaging.Dimensions{ScrollWidth: 10, ScrollHeight: 2000, InnerWidth: 10, InnerHeight: 800},
		maxY: 1200,
	}
	img, err := newTestStitcher(&sleepRecorder{}).CaptureImage(context.Background(), page)
	require.NoError(t, err)

	// the last slice is drawn where the page actually stopped scrolling
	assert.Equal(t, sliceColors[2], img.RGBAAt(0, 1300))
	assert.Equal(t, sliceColors[2], img.RGBAAt(0, 1999))
	assert.Equal(t, sliceColors[1], img.RGBAAt(0, 1100))
}

func TestCaptureScalesHiDPISlices(t *testing.T) {
	page := &fakePage{
		dims:  messaging.Dimensions{ScrollWidth: 20, ScrollHeight: 30, InnerWidth: 20, InnerHeight: 30},
		scale: 2,
	}
	img, err := newTestStitcher(&sleepRecorder{}).CaptureImage(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 30), img.Bounds())
	assert.InDelta(t, 255, int(img.RGBAAt(10, 15).R), 2)
}

func TestCaptureDataURL(t *testing.T) {
	page := &fakePage{dims: messaging.Dimensions{ScrollWidth: 8, ScrollHeight: 8, InnerWidth: 8, InnerHeight: 8}}
	dataURL, err := newTestStitcher(&sleepRecorder{}).Capture(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))

	img, err := DecodeImage(dataURL)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestCaptureErrors(t *testing.T) {
	_, err := newTestStitcher(&sleepRecorder{}).CaptureImage(context.Background(), &fakePage{})
	assert.ErrorIs(t, err, ErrEmptyPage)

	page := &fakePage{
		dims:   messaging.Dimensions{ScrollWidth: 8, ScrollHeight: 20, InnerWidth: 8, InnerHeight: 8},
		failAt: 2,
	}
	_, err = newTestStitcher(&sleepRecorder{}).CaptureImage(context.Background(), page)
	assert.ErrorContains(t, err, "capture segment 1")
	assert.ErrorContains(t, err, "quota")
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1280, 2000))
	dataURL, err := EncodeDataURL(src)
	require.NoError(t, err)

	thumb, err := Thumbnail(dataURL, 300, 200)
	require.NoError(t, err)
	img, err := DecodeImage(thumb)
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())

	wide := image.NewRGBA(image.Rect(0, 0, 1200, 400))
	dataURL, err = EncodeDataURL(wide)
	require.NoError(t, err)
	thumb, err = Thumbnail(dataURL, 300, 200)
	require.NoError(t, err)
	img, err = DecodeImage(thumb)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())
}

func TestDecodeDataURL(t *testing.T) {
	data, mediaType, err := DecodeDataURL("data:text/markdown;base64,IyBIaQ==")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", mediaType)
	assert.Equal(t, "# Hi", string(data))

	data, mediaType, err = DecodeDataURL("data:text/plain,hello")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mediaType)
	assert.Equal(t, "hello", string(data))

	data, mediaType, err = DecodeDataURL("data:text/markdown;charset=utf-8,%23%20Title%0A")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown;charset=utf-8", mediaType)
	assert.Equal(t, "# Title\n", string(data))

	_, _, err = DecodeDataURL("https://example.com")
	assert.Error(t, err)
}
