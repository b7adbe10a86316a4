package segment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/model"
)

// Fallback wraps a vision segmenter: results are cached per screenshot and
// route, low-confidence regions are dropped, and any failure falls back to
// the DOM sections.
type Fallback struct {
	primary   Segmenter
	cache     *lru.Cache[string, *model.Segmentation]
	threshold float64
	logger    *zap.Logger
}

// FallbackOptions configures WithFallback
type FallbackOptions struct {
	CacheSize int     // 0 disables caching
	Threshold float64 // minimum confidence of a reported region
	Logger    *zap.Logger
}

// WithFallback wraps primary. A nil primary always uses the DOM sections.
func WithFallback(primary Segmenter, opts FallbackOptions) *Fallback {
	f := &Fallback{primary: primary, threshold: opts.Threshold, logger: opts.Logger}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		f.cache, _ = lru.New[string, *model.Segmentation](opts.CacheSize)
	}
	return f
}

// Segment never returns an error.
func (f *Fallback) Segment(ctx context.Context, req Request) (*model.Segmentation, error) {
	if f.primary == nil {
		return FromSections(req.Sections), nil
	}
	if _, ok := f.primary.(DOMSegmenter); ok {
		return FromSections(req.Sections), nil
	}

	key := cacheKey(req)
	if f.cache != nil {
		if seg, ok := f.cache.Get(key); ok {
			return seg, nil
		}
	}

	seg, err := f.primary.Segment(ctx, req)
	if err != nil || seg == nil || len(seg.Sections) == 0 {
		f.logger.Warn("segmentation failed, using DOM sections",
			zap.String("route", req.Route.URL),
			zap.Error(err))
		return FromSections(req.Sections), nil
	}

	seg = f.filter(seg)
	if f.cache != nil {
		f.cache.Add(key, seg)
	}
	return seg, nil
}

func (f *Fallback) filter(seg *model.Segmentation) *model.Segmentation {
	if f.threshold <= 0 {
		return seg
	}
	kept := make([]model.Segment, 0, len(seg.Sections))
	for _, s := range seg.Sections {
		if s.Confidence == 0 || s.Confidence >= f.threshold {
			kept = append(kept, s)
		}
	}
	out := *seg
	out.Sections = kept
	return &out
}

// cacheKey hashes the whole screenshot together with the route URL.
func cacheKey(req Request) string {
	h := sha256.New()
	io.WriteString(h, req.Route.URL)
	h.Write([]byte{0})
	io.WriteString(h, req.DataURL)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
