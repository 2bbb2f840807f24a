package browser

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// frameBuffer bounds frames waiting to be written; frames beyond it are dropped
const frameBuffer = 64

// Recorder captures the tab as a Motion-JPEG stream (<uuid>.mjpeg) using the CDP screencast
type Recorder struct {
	ctx      context.Context
	logger   arbor.ILogger
	path     string
	file     *os.File
	writer   *bufio.Writer
	frames   chan *page.EventScreencastFrame
	done     chan struct{}
	mu       sync.Mutex
	stopped  bool
	written  int
	dropped  int
	writeErr error
}

// StartRecording begins a screencast of the browser tab into dir
func StartRecording(ctx context.Context, dir string, width, height int, logger arbor.ILogger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create video directory: %w", err)
	}

	path := filepath.Join(dir, uuid.New().String()+".mjpeg")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	r := &Recorder{
		ctx:    ctx,
		logger: logger,
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
		frames: make(chan *page.EventScreencastFrame, frameBuffer),
		done:   make(chan struct{}),
	}

	chromedp.ListenTarget(ctx, r.onEvent)
	go r.writeFrames()

	err = chromedp.Run(ctx, page.StartScreencast().
		WithFormat(page.ScreencastFormatJpeg).
		WithQuality(70).
		WithMaxWidth(int64(width)).
		WithMaxHeight(int64(height)))
	if err != nil {
		r.shutdown()
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to start screencast: %w", err)
	}

	logger.Info().Str("file", filepath.Base(path)).Msg("Session recording started")
	return r, nil
}

// onEvent runs on the chromedp event loop and must not block
func (r *Recorder) onEvent(ev interface{}) {
	frame, ok := ev.(*page.EventScreencastFrame)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	select {
	case r.frames <- frame:
	default:
		r.dropped++
	}
}

func (r *Recorder) writeFrames() {
	defer close(r.done)

	for frame := range r.frames {
		r.ack(frame.SessionID)

		if r.writeErr != nil {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			r.logger.Debug().Err(err).Msg("Skipping undecodable screencast frame")
			continue
		}
		if _, err := r.writer.Write(data); err != nil {
			r.writeErr = err
			continue
		}
		r.written++
	}
}

// ack releases the next frame; Chrome stops sending frames until the previous one is acknowledged
func (r *Recorder) ack(sessionID int64) {
	c := chromedp.FromContext(r.ctx)
	if c == nil || c.Target == nil {
		return
	}
	if err := page.ScreencastFrameAck(sessionID).Do(cdp.WithExecutor(r.ctx, c.Target)); err != nil {
		r.logger.Debug().Err(err).Int64("session_id", sessionID).Msg("Screencast frame ack failed")
	}
}

// Filename returns the recording's base name
func (r *Recorder) Filename() string {
	return filepath.Base(r.path)
}

// shutdown stops accepting frames and waits for the writer
func (r *Recorder) shutdown() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.frames)
	r.mu.Unlock()

	<-r.done
}

// Stop ends the screencast, flushes the file and returns its base name
func (r *Recorder) Stop() (string, error) {
	if err := chromedp.Run(r.ctx, page.StopScreencast()); err != nil {
		r.logger.Debug().Err(err).Msg("Stop screencast failed, closing recording anyway")
	}

	r.shutdown()

	flushErr := r.writer.Flush()
	closeErr := r.file.Close()

	r.logger.Info().
		Str("file", r.Filename()).
		Int("frames", r.written).
		Int("dropped", r.dropped).
		Msg("Session recording stopped")

	switch {
	case r.writeErr != nil:
		return r.Filename(), fmt.Errorf("failed to write recording: %w", r.writeErr)
	case flushErr != nil:
		return r.Filename(), fmt.Errorf("failed to flush recording: %w", flushErr)
	case closeErr != nil:
		return r.Filename(), fmt.Errorf("failed to close recording: %w", closeErr)
	}
	return r.Filename(), nil
}
