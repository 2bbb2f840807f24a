package browser

import (
	"bufio"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// newTestRecorder builds a recorder whose context carries no browser, so frame acks are no-ops
func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.mjpeg")
	file, err := os.Create(path)
	require.NoError(t, err)

	r := &Recorder{
		ctx:    context.Background(),
		logger: arbor.NewLogger(),
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
		frames: make(chan *page.EventScreencastFrame, frameBuffer),
		done:   make(chan struct{}),
	}
	go r.writeFrames()
	return r
}

func screencastFrame(sessionID int64, data string) *page.EventScreencastFrame {
	return &page.EventScreencastFrame{
		Data:      base64.StdEncoding.EncodeToString([]byte(data)),
		SessionID: sessionID,
	}
}

func TestRecorder_WritesFramesInOrder(t *testing.T) {
	r := newTestRecorder(t)

	r.onEvent(screencastFrame(1, "frame-one;"))
	r.onEvent(screencastFrame(2, "frame-two;"))
	r.onEvent(&page.EventScreencastVisibilityChanged{Visible: true})
	r.onEvent(&page.EventScreencastFrame{Data: "%%%", SessionID: 3})

	r.shutdown()
	require.NoError(t, r.writer.Flush())
	require.NoError(t, r.file.Close())

	data, err := os.ReadFile(r.path)
	require.NoError(t, err)
	assert.Equal(t, "frame-one;frame-two;", string(data))
	assert.Equal(t, 2, r.written)
	assert.Equal(t, "session.mjpeg", r.Filename())
}

func TestRecorder_IgnoresFramesAfterShutdown(t *testing.T) {
	r := newTestRecorder(t)
	r.shutdown()

	r.onEvent(screencastFrame(1, "late"))
	r.shutdown()

	assert.Equal(t, 0, r.written)
	assert.Equal(t, 0, r.dropped)
	require.NoError(t, r.file.Close())
}
