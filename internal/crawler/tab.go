package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/inspector"
	"github.com/v0xg/routedoc/internal/inspector/snapshot"
	"github.com/v0xg/routedoc/internal/messaging"
)

// Tab is one browser page. It implements messaging.Channel towards the
// page agent and stitcher.Capturer for full-page capture.
type Tab struct {
	id      string
	page    *rod.Page
	agent   *inspector.Agent
	logger  *zap.Logger
	onClose func(id string)
}

// ID returns the browser target id.
func (t *Tab) ID() string {
	return t.id
}

// Page returns the underlying Rod page
func (t *Tab) Page() *rod.Page {
	return t.page
}

// URL returns the address the tab currently shows.
func (t *Tab) URL(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("read tab url: %w", err)
	}
	return res.Value.Str(), nil
}

// Navigate loads url in the tab. The agent does not survive navigation.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitLoad blocks until the load event fired and the network went idle,
// then gives SPA frameworks time to render interactive elements. The load
// wait is bounded by ctx.
func (t *Tab) WaitLoad(ctx context.Context) error {
	page := t.page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load: %w", err)
	}

	page.Timeout(settleTimeout).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	if t.detectSPA(ctx) {
		t.waitForInteractiveElements(ctx, settleTimeout)
	}
	return nil
}

// Inject installs the page agent into the current document.
func (t *Tab) Inject(ctx context.Context) error {
	if _, err := t.page.Context(ctx).Eval(agentScript); err != nil {
		return fmt.Errorf("inject page agent: %w", err)
	}
	t.logger.Debug("page agent injected")
	return nil
}

// Send delivers req to the page agent. It fails with
// messaging.ErrNotConnected when the agent is not installed in the
// current document.
func (t *Tab) Send(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	present, err := t.page.Context(ctx).Eval(agentPresentScript)
	if err != nil {
		return messaging.Response{}, fmt.Errorf("%w: %v", messaging.ErrNotConnected, err)
	}
	if !present.Value.Bool() {
		return messaging.Response{}, messaging.ErrNotConnected
	}

	snap, err := t.snapshot(ctx)
	if err != nil {
		return messaging.Response{}, err
	}
	return t.agent.Handle(ctx, snap, req), nil
}

// snapshot serialises the live page and wires scrolling back to it.
func (t *Tab) snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	res, err := t.page.Context(ctx).Eval(`() => window.__routedoc.snapshot()`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", messaging.ErrNotConnected, err)
	}

	var p snapshot.Page
	if err := json.Unmarshal([]byte(res.Value.Str()), &p); err != nil {
		return nil, fmt.Errorf("decode page snapshot: %w", err)
	}
	return snapshot.New(&p, snapshot.WithScroller(func(x, y float64) error {
		_, err := t.page.Context(ctx).Eval(`(x, y) => window.__routedoc.scrollTo(x, y)`, x, y)
		return err
	}))
}

// Dimensions implements stitcher.Capturer.
func (t *Tab) Dimensions(ctx context.Context) (messaging.Dimensions, error) {
	var d messaging.Dimensions
	res, err := t.page.Context(ctx).Eval(dimensionsScript)
	if err != nil {
		return d, fmt.Errorf("measure page: %w", err)
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &d); err != nil {
		return d, fmt.Errorf("decode page dimensions: %w", err)
	}
	return d, nil
}

// ScrollTo implements stitcher.Capturer.
func (t *Tab) ScrollTo(ctx context.Context, y float64) (float64, error) {
	res, err := t.page.Context(ctx).Eval(scrollScript, y)
	if err != nil {
		return 0, fmt.Errorf("scroll to %.0f: %w", y, err)
	}
	return res.Value.Num(), nil
}

// CaptureViewport implements stitcher.Capturer.
func (t *Tab) CaptureViewport(ctx context.Context) ([]byte, error) {
	data, err := t.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture viewport: %w", err)
	}
	return data, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.onClose != nil {
		t.onClose(t.id)
	}
	if err := t.page.Close(); err != nil {
		return fmt.Errorf("close tab %s: %w", t.id, err)
	}
	return nil
}

// waitForInteractiveElements polls until interactive elements appear or timeout
func (t *Tab) waitForInteractiveElements(ctx context.Context, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	checkInterval := 200 * time.Millisecond

	for time.Now().Before(deadline) {
		res, err := t.page.Context(ctx).Eval(interactiveCountScript)
		if err != nil {
			return
		}
		if res.Value.Int() > 0 {
			// Found elements, wait a tiny bit more for any final renders
			sleep(ctx, 300*time.Millisecond)
			return
		}
		if !sleep(ctx, checkInterval) {
			return
		}
	}
}

// detectSPA checks if the page is a Single Page Application
func (t *Tab) detectSPA(ctx context.Context) bool {
	res, err := t.page.Context(ctx).Eval(spaScript)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
