// Package artifacts writes screenshot evidence into the reports directory.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeName replaces every run of characters outside [A-Za-z0-9_-] with "_"
func SanitizeName(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

// Capturer saves viewport screenshots as <name>_<epoch>.png
type Capturer struct {
	page   interfaces.Page
	dir    string
	logger arbor.ILogger
	now    func() time.Time
}

// NewCapturer creates a capturer writing into dir
func NewCapturer(page interfaces.Page, dir string, logger arbor.ILogger) *Capturer {
	return &Capturer{
		page:   page,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Capture takes a screenshot and returns its path, or "" when it could not be written
func (c *Capturer) Capture(ctx context.Context, name string) string {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.logger.Warn().Err(err).Str("dir", c.dir).Msg("Screenshot skipped: reports directory unavailable")
		return ""
	}

	filename := fmt.Sprintf("%s_%d.png", SanitizeName(name), c.now().Unix())
	path := filepath.Join(c.dir, filename)

	if err := c.page.Screenshot(ctx, path); err != nil {
		c.logger.Warn().Err(err).Str("name", name).Msg("Screenshot failed")
		return ""
	}

	c.logger.Debug().Str("file", filename).Msg("Screenshot captured")
	return path
}
