package app

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/services/browser"
)

// driver is a launched browser with one page
type driver interface {
	Page() interfaces.Page
	Record(dir string) (recording, error)
	Close()
}

// recording is an in-progress session video
type recording interface {
	Stop() (string, error)
}

type launchFunc func(ctx context.Context) (driver, error)

// chromeDriver adapts a chromedp browser to driver
type chromeDriver struct {
	browser *browser.Browser
	cfg     common.BrowserConfig
	logger  arbor.ILogger
}

func launchChrome(cfg *common.Config, logger arbor.ILogger) launchFunc {
	return func(ctx context.Context) (driver, error) {
		b, err := browser.Launch(ctx, cfg.Browser, logger)
		if err != nil {
			return nil, err
		}
		return &chromeDriver{browser: b, cfg: cfg.Browser, logger: logger}, nil
	}
}

func (d *chromeDriver) Page() interfaces.Page {
	return d.browser.Page()
}

func (d *chromeDriver) Record(dir string) (recording, error) {
	rec, err := browser.StartRecording(d.browser.Context(), dir, d.cfg.ViewportWidth, d.cfg.ViewportHeight, d.logger)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (d *chromeDriver) Close() {
	d.browser.Close()
}
