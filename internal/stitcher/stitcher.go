// Package stitcher captures a full-page screenshot by scrolling the page one
// viewport at a time and compositing the slices.
package stitcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/routedoc/internal/messaging"
)

// ErrEmptyPage is returned when the page reports no scrollable area.
var ErrEmptyPage = errors.New("page has no measurable size")

// Capturer is the tab surface the stitcher drives.
type Capturer interface {
	Dimensions(ctx context.Context) (messaging.Dimensions, error)
	// ScrollTo scrolls the page and returns the offset the page settled at,
	// which is less than y when the page cannot scroll that far.
	ScrollTo(ctx context.Context, y float64) (float64, error)
	// CaptureViewport returns the visible viewport as an encoded image.
	CaptureViewport(ctx context.Context) ([]byte, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures a Stitcher
type Options struct {
	ScrollDelay     time.Duration // repaint wait after each scroll
	CaptureInterval time.Duration // minimum gap between viewport captures
	Sleep           SleepFunc
	Now             func() time.Time
	Logger          *zap.Logger
}

// DefaultOptions matches the browser's capture quota of two per second.
func DefaultOptions() Options {
	return Options{
		ScrollDelay:     300 * time.Millisecond,
		CaptureInterval: 500 * time.Millisecond,
	}
}

// Stitcher composes full-page screenshots. It is safe for concurrent use;
// captures from different tabs share one throttle.
type Stitcher struct {
	scrollDelay time.Duration
	sleep       SleepFunc
	throttle    *captureThrottle
	logger      *zap.Logger
}

// New creates a Stitcher.
func New(opts Options) *Stitcher {
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Stitcher{
		scrollDelay: opts.ScrollDelay,
		sleep:       opts.Sleep,
		throttle:    newCaptureThrottle(opts.CaptureInterval, opts.Now),
		logger:      opts.Logger,
	}
}

// Segments returns the scroll offsets needed to cover height with slices of
// viewport: ceil(height/viewport) offsets at multiples of viewport, at least one.
func Segments(height, viewport int) []int {
	n := 1
	if viewport > 0 && height > viewport {
		n = int(math.Ceil(float64(height) / float64(viewport)))
	}
	offsets := make([]int, n)
	for i := range offsets {
		offsets[i] = i * viewport
	}
	return offsets
}

type slice struct {
	y    int
	data []byte
}

// Capture returns the full page as a PNG data URL.
func (s *Stitcher) Capture(ctx context.Context, c Capturer) (string, error) {
	img, err := s.CaptureImage(ctx, c)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(img)
}

// CaptureImage scrolls through the page, captures every viewport and draws
// each slice onto a canvas the size of the page at the offset it was taken.
func (s *Stitcher) CaptureImage(ctx context.Context, c Capturer) (*image.RGBA, error) {
	dims, err := c.Dimensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("page dimensions: %w", err)
	}
	width := int(math.Ceil(dims.ScrollWidth))
	if width <= 0 {
		width = int(math.Ceil(dims.InnerWidth))
	}
	height := int(math.Ceil(dims.ScrollHeight))
	viewport := int(math.Ceil(dims.InnerHeight))
	if width <= 0 || height <= 0 || viewport <= 0 {
		return nil, fmt.Errorf("%w: %vx%v viewport %v", ErrEmptyPage, dims.ScrollWidth, dims.ScrollHeight, dims.InnerHeight)
	}

	offsets := Segments(height, viewport)
	s.logger.Debug("capturing page",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("segments", len(offsets)))

	slices := make([]slice, 0, len(offsets))
	for i, y := range offsets {
		settled, err := c.ScrollTo(ctx, float64(y))
		if err != nil {
			return nil, fmt.Errorf("scroll to %d: %w", y, err)
		}
		if err := s.sleep(ctx, s.scrollDelay); err != nil {
			return nil, err
		}
		if err := s.throttle.Wait(ctx, s.sleep); err != nil {
			return nil, err
		}
		data, err := c.CaptureViewport(ctx)
		if err != nil {
			return nil, fmt.Errorf("capture segment %d: %w", i, err)
		}
		slices = append(slices, slice{y: int(math.Round(settled)), data: data})
	}

	return compose(ctx, slices, width, height)
}

// compose decodes slices concurrently and draws them by offset, so decode
// completion order does not matter.
func compose(ctx context.Context, slices []slice, width, height int) (*image.RGBA, error) {
	decoded := make([]image.Image, len(slices))
	g, gctx := errgroup.WithContext(ctx)
	for i := range slices {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, _, err := image.Decode(bytes.NewReader(slices[i].data))
			if err != nil {
				return fmt.Errorf("decode segment %d: %w", i, err)
			}
			decoded[i] = fitWidth(img, width)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, img := range decoded {
		b := img.Bounds()
		dst := image.Rect(0, slices[i].y, b.Dx(), slices[i].y+b.Dy()).Intersect(canvas.Bounds())
		draw.Draw(canvas, dst, img, b.Min, draw.Src)
	}
	return canvas, nil
}

// fitWidth scales slices captured at a device pixel ratio above 1 back to
// CSS pixels.
func fitWidth(img image.Image, width int) image.Image {
	if img.Bounds().Dx() <= width {
		return img
	}
	return resize.Resize(uint(width), 0, img, resize.Lanczos3)
}

// captureThrottle enforces a minimum interval between captures.
type captureThrottle struct {
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
	last     time.Time
}

func newCaptureThrottle(interval time.Duration, now func() time.Time) *captureThrottle {
	if interval <= 0 {
		return nil
	}
	return &captureThrottle{interval: interval, now: now}
}

// Wait blocks until interval has passed since the previous Wait returned.
func (t *captureThrottle) Wait(ctx context.Context, sleep SleepFunc) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() {
		if d := t.interval - t.now().Sub(t.last); d > 0 {
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	t.last = t.now()
	return nil
}
