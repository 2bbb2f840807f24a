// Package browsertest provides an in-memory Page for exercising the agent without Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/tidwall/match"
)

// ErrNotVisible is returned by WaitVisible and Click for selectors not marked visible
var ErrNotVisible = errors.New("element not visible")

// FakePage records calls and answers from configured state.
// A selector is visible when Visible[selector] is true.
type FakePage struct {
	mu sync.Mutex

	URL     string
	Content string // returned by HTML
	Body    string // returned by Text
	Visible map[string]bool

	// Frame is encoded as the screenshot; nil writes a mid-gray frame
	Frame         image.Image
	ScreenshotErr error
	NavigateErr   error
	FillErr       error
	ClickErr      error
	ForceClickErr error

	// OnClick runs after a successful click or force click, for simulating navigation
	OnClick func(p *FakePage, selector string)

	Navigations []string
	Fills       map[string]string
	Clicks      []string
	ForceClicks []string
	Scrolls     []string
	Screenshots []string
	Reloads     int
}

var _ interfaces.Page = (*FakePage)(nil)

// New creates an empty page at about:blank
func New() *FakePage {
	return &FakePage{
		URL:     "about:blank",
		Visible: map[string]bool{},
		Fills:   map[string]string{},
	}
}

// SetVisible marks selectors visible or hidden
func (p *FakePage) SetVisible(visible bool, selectors ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.Visible[s] = visible
	}
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.URL = url
	return nil
}

func (p *FakePage) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reloads++
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FillErr != nil {
		return p.FillErr
	}
	p.Fills[selector] = value
	return nil
}

func (p *FakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Visible[selector] {
		return fmt.Errorf("%s: %w", selector, ErrNotVisible)
	}
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	if p.ClickErr != nil {
		p.mu.Unlock()
		return p.ClickErr
	}
	if !p.Visible[selector] {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", selector, ErrNotVisible)
	}
	p.Clicks = append(p.Clicks, selector)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *FakePage) WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !match.Match(p.URL, pattern) {
		return fmt.Errorf("url %s did not match %s", p.URL, pattern)
	}
	return nil
}

func (p *FakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Content, nil
}

func (p *FakePage) Text(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Body, nil
}

func (p *FakePage) IsVisible(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Visible[selector], nil
}

func (p *FakePage) ScrollIntoView(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls = append(p.Scrolls, selector)
	return nil
}

func (p *FakePage) ForceClick(ctx context.Context, selector string) error {
	p.mu.Lock()
	if p.ForceClickErr != nil {
		p.mu.Unlock()
		return p.ForceClickErr
	}
	p.ForceClicks = append(p.ForceClicks, selector)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *FakePage) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}

	frame := p.Frame
	if frame == nil {
		frame = Solid(8, 8, color.Gray{Y: 128})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, frame); err != nil {
		return err
	}

	p.Screenshots = append(p.Screenshots, path)
	return nil
}

// Solid returns a w*h image filled with c
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
