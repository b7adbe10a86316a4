// Package export writes generated documents and screenshots to disk.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/routedoc/internal/model"
	"github.com/v0xg/routedoc/internal/stitcher"
)

// maxRenames bounds the "name (n).ext" search for a free filename.
const maxRenames = 1000

// Downloader writes files under a root directory. A file whose name is
// taken is written as "name (1).ext", "name (2).ext" and so on.
type Downloader struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewDownloader creates a downloader rooted at dir.
func NewDownloader(dir string, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Download writes every file and reports the paths written, relative to the
// output directory, and the files that failed. One failure does not stop
// the others.
func (d *Downloader) Download(ctx context.Context, files []model.File) ([]string, []model.FailedFile) {
	downloaded := []string{}
	failed := []model.FailedFile{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			failed = append(failed, model.FailedFile{Filename: f.Filename, Error: err.Error()})
			continue
		}
		name, err := d.write(f)
		if err != nil {
			d.logger.Warn("download failed", zap.String("file", f.Filename), zap.Error(err))
			failed = append(failed, model.FailedFile{Filename: f.Filename, Error: err.Error()})
			continue
		}
		downloaded = append(downloaded, name)
	}
	return downloaded, failed
}

func (d *Downloader) write(f model.File) (string, error) {
	rel, err := cleanPath(f.Filename)
	if err != nil {
		return "", err
	}
	data, err := content(f)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	target := filepath.Join(d.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for i := 0; i < maxRenames; i++ {
		candidate := target
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		file, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("failed to close file: %w", err)
		}
		out, err := filepath.Rel(d.dir, candidate)
		if err != nil {
			return candidate, nil
		}
		return filepath.ToSlash(out), nil
	}
	return "", fmt.Errorf("no free filename for %s", rel)
}

// content returns the bytes of f. Data URLs are decoded, anything else is
// written as text.
func content(f model.File) ([]byte, error) {
	if strings.HasPrefix(f.Content, "data:") {
		data, _, err := stitcher.DecodeDataURL(f.Content)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return []byte(f.Content), nil
}

// cleanPath sanitises each element of a slash-separated filename and
// rejects names that would leave the output directory.
func cleanPath(name string) (string, error) {
	var parts []string
	for _, p := range strings.Split(path.Clean("/"+name), "/") {
		if p == "" || p == "." || p == ".." {
			continue
		}
		p = SanitizeFilename(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return strings.Join(parts, "/"), nil
}

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	repeatedDash = regexp.MustCompile(`-{2,}`)
)

// SanitizeFilename replaces characters that are illegal in filenames on
// common filesystems.
func SanitizeFilename(name string) string {
	name = illegalChars.ReplaceAllString(name, "-")
	name = repeatedDash.ReplaceAllString(name, "-")
	return strings.Trim(name, " .")
}

// ScreenshotFilename names a route screenshot after its URL and capture time,
// e.g. "screenshot-docs-intro-2024-01-02T03-04-05.000Z.png".
func ScreenshotFilename(routeURL string, t time.Time) string {
	route := strings.Trim(routeURL, "/")
	if route == "" {
		route = "home"
	}
	route = strings.Trim(SanitizeFilename(strings.NewReplacer("/", "-", "?", "-", "&", "-", "=", "-").Replace(route)), "-")
	if route == "" {
		route = "home"
	}
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-")
	return fmt.Sprintf("screenshot-%s-%s.png", route, stamp)
}

// AnnotatedFilename is the name of the section overlay exported next to a screenshot.
func AnnotatedFilename(screenshot string) string {
	return strings.TrimSuffix(screenshot, filepath.Ext(screenshot)) + "-annotated.png"
}

// ThumbnailFilename is the name of the thumbnail exported next to a screenshot.
func ThumbnailFilename(screenshot string) string {
	return strings.TrimSuffix(screenshot, filepath.Ext(screenshot)) + "-thumb.png"
}
