package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/components"
	"github.com/v0xg/routedoc/internal/export"
	"github.com/v0xg/routedoc/internal/messaging"
	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/overlay"
	"github.com/v0xg/routedoc/internal/stitcher"
)

const screenshotDir = "screenshots/"

// thumbnail bounds for exported screenshots
const (
	thumbWidth  = 320
	thumbHeight = 240
)

// Handler exposes the background actions. Page actions are forwarded to
// the tab named by the request, or the active tab.
func (o *Orchestrator) Handler() *messaging.Router {
	r := messaging.NewRouter()

	r.RegisterFunc(messaging.ProcessRoutes, func(ctx context.Context, req messaging.Request) messaging.Response {
		res, err := o.ProcessRoutes(ctx, req.Routes)
		if err != nil {
			return messaging.Fail(err)
		}
		return messaging.Response{Success: res.Success, Message: res.Message}
	})
	r.RegisterFunc(messaging.ProcessAndCaptureRoute, func(ctx context.Context, req messaging.Request) messaging.Response {
		if req.Route == nil {
			return messaging.Fail(errors.New("route is required"))
		}
		process := o.ProcessAndCaptureRoute
		if req.InPlace {
			process = o.ProcessIndividualRoute
		}
		p, err := process(ctx, *req.Route)
		if err != nil {
			return messaging.Fail(err)
		}
		return messaging.Response{Success: true, Data: p}
	})
	r.RegisterFunc(messaging.CaptureScreenshot, func(ctx context.Context, req messaging.Request) messaging.Response {
		return o.CaptureScreenshot(ctx, req.TabID)
	})
	r.RegisterFunc(messaging.DownloadFiles, func(ctx context.Context, req messaging.Request) messaging.Response {
		return o.DownloadFiles(ctx, req.Files)
	})
	r.RegisterFunc(messaging.DownloadScreenshots, func(ctx context.Context, _ messaging.Request) messaging.Response {
		return o.DownloadScreenshots(ctx)
	})
	r.RegisterFunc(messaging.ExportAllData, func(ctx context.Context, req messaging.Request) messaging.Response {
		return o.ExportAllData(ctx, req.IncludeScreenshots)
	})
	r.RegisterFunc(messaging.GetSettings, func(context.Context, messaging.Request) messaging.Response {
		return o.GetSettings()
	})

	for _, action := range []messaging.Action{
		messaging.GetRoutes,
		messaging.RefreshRoutes,
		messaging.AnalyzePageStructure,
		messaging.PageReady,
		messaging.GetPageDimensions,
	} {
		r.RegisterFunc(action, o.forward)
	}
	return r
}

func (o *Orchestrator) forward(ctx context.Context, req messaging.Request) messaging.Response {
	tab, err := o.tab(ctx, req.TabID)
	if err != nil {
		return messaging.Fail(err)
	}
	resp, err := o.send(ctx, tab, req)
	if err != nil {
		return messaging.Fail(err)
	}
	return resp
}

func (o *Orchestrator) tab(ctx context.Context, id string) (Tab, error) {
	if id == "" {
		return o.driver.Active(ctx)
	}
	return o.driver.Tab(id)
}

// CaptureScreenshot captures a tab. Quota and permission failures are
// reported in the response with Continue set so a caller can move on.
func (o *Orchestrator) CaptureScreenshot(ctx context.Context, tabID string) messaging.Response {
	tab, err := o.tab(ctx, tabID)
	if err != nil {
		return messaging.Response{Success: false, Error: err.Error(), Continue: true}
	}

	dataURL, err := o.screenshot(ctx, tab)
	if err != nil {
		o.metrics.IncScreenshot(outcomeFailed)
		o.metrics.IncError(errorTypeLabel(err))
		o.logger.Warn("screenshot failed", zap.String("tab", tab.ID()), zap.Error(err))

		var quota QuotaError
		var perm PermissionError
		return messaging.Response{
			Success:         false,
			Error:           err.Error(),
			QuotaExceeded:   errors.As(err, &quota),
			PermissionError: errors.As(err, &perm),
			Continue:        true,
		}
	}
	o.metrics.IncScreenshot(outcomeSuccess)
	return messaging.Response{Success: true, DataURL: dataURL}
}

// DownloadFiles writes files to the output directory. Individual failures
// are listed in Failed and do not fail the whole request.
func (o *Orchestrator) DownloadFiles(ctx context.Context, files []model.File) messaging.Response {
	downloaded, failed := o.downloader.Download(ctx, files)
	resp := messaging.Response{
		Success:    true,
		Message:    fmt.Sprintf("Downloaded %d of %d files", len(downloaded), len(files)),
		Downloaded: downloaded,
		Failed:     failed,
	}
	if len(failed) > 0 {
		resp.Error = fmt.Sprintf("%d files failed to download", len(failed))
	}
	return resp
}

// DownloadScreenshots writes every screenshot of the current session.
func (o *Orchestrator) DownloadScreenshots(ctx context.Context) messaging.Response {
	shots, err := o.screenshots.All(ctx)
	if err != nil {
		return messaging.Fail(fmt.Errorf("failed to load screenshots: %w", err))
	}
	if len(shots) == 0 {
		return messaging.Fail(errors.New("no screenshots to download"))
	}
	resp := o.DownloadFiles(ctx, o.screenshotFiles(shots, nil, false))
	resp.Screenshots = len(shots)
	return resp
}

// screenshotFiles turns screenshots into PNG files, optionally with a
// thumbnail each. Screenshots whose route appears in sections also get an
// annotated copy.
func (o *Orchestrator) screenshotFiles(shots []model.Screenshot, sections map[string][]model.Section, thumbnails bool) []model.File {
	files := make([]model.File, 0, len(shots))
	for _, s := range shots {
		name := screenshotDir + export.ScreenshotFilename(s.RouteURL, s.CreatedAt)
		files = append(files, model.File{Filename: name, Content: s.DataURL, MimeType: "image/png"})

		if thumbnails {
			thumb, err := stitcher.Thumbnail(s.DataURL, thumbWidth, thumbHeight)
			if err != nil {
				o.logger.Warn("failed to create thumbnail", zap.String("route", s.RouteURL), zap.Error(err))
			} else {
				files = append(files, model.File{Filename: export.ThumbnailFilename(name), Content: thumb, MimeType: "image/png"})
			}
		}

		secs := sections[s.RouteID]
		if len(secs) == 0 {
			continue
		}
		annotated, err := overlay.AnnotateSections(s.DataURL, secs)
		if err != nil {
			o.logger.Warn("failed to annotate screenshot", zap.String("route", s.RouteURL), zap.Error(err))
			continue
		}
		files = append(files, model.File{Filename: export.AnnotatedFilename(name), Content: annotated, MimeType: "image/png"})
	}
	return files
}

// ExportAllData generates the documentation set for the processed routes of
// the current run and writes it, with screenshots when asked.
func (o *Orchestrator) ExportAllData(ctx context.Context, includeScreenshots bool) messaging.Response {
	routes, err := o.state.ProcessedRoutes(ctx)
	if err != nil {
		return messaging.Fail(fmt.Errorf("failed to load processed routes: %w", err))
	}
	if len(routes) == 0 {
		return messaging.Fail(ErrNoProcessedRoutes)
	}

	aggregated := components.Aggregate(routes)
	files := o.markdown.Generate(routes, aggregated)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}

	summary := model.ExportSummary{
		TotalRoutes:     len(routes),
		TotalComponents: len(aggregated),
	}
	sections := make(map[string][]model.Section, len(routes))
	for _, r := range routes {
		summary.TotalSections += len(r.Sections)
		if r.Failed() {
			summary.FailedRoutes++
			continue
		}
		sections[r.Route.ID] = r.Sections
	}

	if includeScreenshots {
		shots, err := o.screenshots.All(ctx)
		if err != nil {
			o.logger.Warn("failed to load screenshots", zap.Error(err))
		} else {
			summary.Screenshots = len(shots)
			files = append(files, o.screenshotFiles(shots, sections, true)...)
		}
	}

	downloaded, failed := o.downloader.Download(ctx, files)
	o.logger.Info("export finished",
		zap.Int("routes", summary.TotalRoutes),
		zap.Int("files", len(downloaded)),
		zap.Int("failed", len(failed)))

	resp := messaging.Response{
		Success:     true,
		Message:     fmt.Sprintf("Exported %d routes", summary.TotalRoutes),
		Files:       names,
		Screenshots: summary.Screenshots,
		Summary:     &summary,
		Downloaded:  downloaded,
		Failed:      failed,
	}
	if len(failed) > 0 {
		resp.Error = fmt.Sprintf("%d files failed to download", len(failed))
	}
	return resp
}

// GetSettings returns the capture settings in effect.
func (o *Orchestrator) GetSettings() messaging.Response {
	s := o.cfg.Settings
	return messaging.Response{Success: true, Settings: &s}
}
