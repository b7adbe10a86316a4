package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/routedoc/internal/messaging"
)

var (
	// ErrNoRoutes is returned by ProcessRoutes for an empty route list.
	ErrNoRoutes = errors.New("no routes provided")
	// ErrNavigationTimeout is returned when a tab does not finish loading in time.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrNoProcessedRoutes is returned by exports before any route was processed.
	ErrNoProcessedRoutes = errors.New("no processed routes found")

	// errStaleSession drops writes from a run superseded by a newer ProcessRoutes call.
	errStaleSession = errors.New("stale capture session")
)

// QuotaError indicates the browser refused a capture because the
// per-second capture quota was exceeded.
type QuotaError struct {
	Err error
}

func (e QuotaError) Error() string {
	return fmt.Errorf("quota exceeded: %w", e.Err).Error()
}

func (e QuotaError) Unwrap() error {
	return e.Err
}

// PermissionError indicates the tab cannot be captured at all.
type PermissionError struct {
	Err error
}

func (e PermissionError) Error() string {
	return fmt.Errorf("permission denied: %w", e.Err).Error()
}

func (e PermissionError) Unwrap() error {
	return e.Err
}

// classifyCaptureError wraps quota and permission failures reported by the
// browser into their typed errors. Other errors are returned unchanged.
func classifyCaptureError(err error) error {
	if err == nil {
		return nil
	}
	var quota QuotaError
	var perm PermissionError
	if errors.As(err, &quota) || errors.As(err, &perm) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "max_capture_visible_tab_calls_per_second"),
		strings.Contains(msg, "quota"):
		return QuotaError{Err: err}
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "cannot access"),
		strings.Contains(msg, "not allowed"):
		return PermissionError{Err: err}
	}
	return err
}

// errorTypeLabel maps an error to a metrics label.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var quota QuotaError
	if errors.As(err, &quota) {
		return "quota"
	}
	var perm PermissionError
	if errors.As(err, &perm) {
		return "permission"
	}
	if errors.Is(err, ErrNavigationTimeout) {
		return "navigation_timeout"
	}
	if isNotConnected(err) {
		return "not_connected"
	}
	return "other"
}

// isNotConnected reports whether a delivery failed because the tab has no
// page agent yet.
func isNotConnected(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, messaging.ErrNotConnected) ||
		strings.Contains(strings.ToLower(err.Error()), "could not establish connection")
}
