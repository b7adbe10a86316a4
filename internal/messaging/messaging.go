// Package messaging carries requests between the background orchestrator,
// the CLI front end and the per-tab page agents.
package messaging

import (
	"context"
	"errors"

	"github.com/v0xg/routedoc/internal/config"
	"github.com/v0xg/routedoc/internal/model"
)

// ErrNotConnected is returned when a tab has no page agent to receive a request.
var ErrNotConnected = errors.New("could not establish connection: receiving end does not exist")

// Action names a request. The set is closed.
type Action string

const (
	GetRoutes              Action = "getRoutes"
	RefreshRoutes          Action = "refreshRoutes"
	AnalyzePageStructure   Action = "analyzePageStructure"
	PageReady              Action = "pageReady"
	GetPageDimensions      Action = "getPageDimensions"
	ProcessRoutes          Action = "processRoutes"
	ProcessAndCaptureRoute Action = "processAndCaptureRoute"
	DownloadFiles          Action = "downloadFiles"
	DownloadScreenshots    Action = "downloadScreenshots"
	ExportAllData          Action = "exportAllData"
	CaptureScreenshot      Action = "captureScreenshot"
	GetSettings            Action = "getSettings"
	ProcessingProgress     Action = "processingProgress"
	ProcessingComplete     Action = "processingComplete"
)

var actions = map[Action]struct{}{
	GetRoutes: {}, RefreshRoutes: {}, AnalyzePageStructure: {}, PageReady: {},
	GetPageDimensions: {}, ProcessRoutes: {}, ProcessAndCaptureRoute: {},
	DownloadFiles: {}, DownloadScreenshots: {}, ExportAllData: {},
	CaptureScreenshot: {}, GetSettings: {}, ProcessingProgress: {},
	ProcessingComplete: {},
}

// Valid reports whether a is one of the declared actions.
func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

// Request is the envelope for every action. Only the payload fields the
// action uses are set.
type Request struct {
	Action             Action        `json:"action"`
	Route              *model.Route  `json:"route,omitempty"`
	Routes             []model.Route `json:"routes,omitempty"`
	Files              []model.File  `json:"files,omitempty"`
	IncludeScreenshots bool          `json:"includeScreenshots,omitempty"`
	TabID              string        `json:"tabId,omitempty"`
	// InPlace asks processAndCaptureRoute to use the active tab instead of a new one
	InPlace bool `json:"inPlace,omitempty"`

	// broadcast payloads
	Progress int    `json:"progress,omitempty"`
	Success  bool   `json:"success,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Dimensions are the page and viewport sizes reported by a page agent
type Dimensions struct {
	ScrollWidth  float64 `json:"scrollWidth"`
	ScrollHeight float64 `json:"scrollHeight"`
	InnerWidth   float64 `json:"innerWidth"`
	InnerHeight  float64 `json:"innerHeight"`
}

// Response is the answer to a Request.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Routes     []string              `json:"routes,omitempty"` // JSON-encoded model.Route values
	Analysis   *model.PageAnalysis   `json:"analysis,omitempty"`
	Dimensions *Dimensions           `json:"dimensions,omitempty"`
	Data       *model.ProcessedRoute `json:"data,omitempty"`
	Settings   *config.Settings      `json:"settings,omitempty"`

	DataURL         string `json:"dataUrl,omitempty"`
	QuotaExceeded   bool   `json:"quotaExceeded,omitempty"`
	PermissionError bool   `json:"permissionError,omitempty"`
	Continue        bool   `json:"continue,omitempty"`

	Downloaded  []string             `json:"downloaded,omitempty"`
	Failed      []model.FailedFile   `json:"failed,omitempty"`
	Files       []string             `json:"files,omitempty"`
	Screenshots int                  `json:"screenshots,omitempty"`
	Summary     *model.ExportSummary `json:"summary,omitempty"`
}

// Fail builds an unsuccessful response from err.
func Fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Handler answers requests. Implementations report failures in the
// Response rather than panicking across the boundary.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Channel delivers a request to another context. Send returns an error only
// when delivery itself failed, e.g. ErrNotConnected.
type Channel interface {
	Send(ctx context.Context, req Request) (Response, error)
}
