package oracle

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
)

func writeScreenshot(t *testing.T) (string, []byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heal_Sign_In_1.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return path, data
}

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Oracle.Timeout = 5 * time.Second
	cfg.Oracle.RateLimit = 0
	cfg.Gemini.APIKey = ""
	cfg.Claude.APIKey = ""
	return cfg
}

func TestNone(t *testing.T) {
	answer, ok := None{}.Query(context.Background(), "prompt", "missing.png")
	assert.False(t, ok)
	assert.Empty(t, answer)
	assert.Equal(t, "none", None{}.Name())
}

func TestNew_DegradesWithoutKeys(t *testing.T) {
	logger := arbor.NewLogger()

	for _, provider := range []common.OracleProvider{common.OracleProviderGemini, common.OracleProviderClaude, common.OracleProviderNone} {
		t.Run(string(provider), func(t *testing.T) {
			cfg := testConfig()
			cfg.Oracle.Provider = provider
			assert.Equal(t, "none", New(context.Background(), cfg, logger).Name())
		})
	}
}

func TestNew_ClaudeWithKey(t *testing.T) {
	cfg := testConfig()
	cfg.Oracle.Provider = common.OracleProviderClaude
	cfg.Claude.APIKey = "sk-test"

	assert.Equal(t, "claude", New(context.Background(), cfg, arbor.NewLogger()).Name())
}

func TestScreenshot(t *testing.T) {
	path, data := writeScreenshot(t)

	got, mimeType, err := screenshot(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = screenshot(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func newOllamaServer(t *testing.T, handler http.HandlerFunc) (*Ollama, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.Ollama.URL = srv.URL
	cfg.Ollama.Model = "llava"
	cfg.Ollama.ServeCommand = nil
	return NewOllama(cfg, arbor.NewLogger()), srv
}

func TestOllama_Query(t *testing.T) {
	path, data := writeScreenshot(t)

	o, _ := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)
		assert.Equal(t, "What is on the button?", req.Prompt)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Images, 1) {
			assert.Equal(t, data, req.Images[0])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llava","response":"Sign In","done":true}`))
	})

	answer, ok := o.Query(context.Background(), "What is on the button?", path)
	assert.True(t, ok)
	assert.Equal(t, "Sign In", answer)
	assert.Equal(t, "ollama", o.Name())
}

func TestOllama_QueryServerError(t *testing.T) {
	path, _ := writeScreenshot(t)

	o, _ := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	answer, ok := o.Query(context.Background(), "prompt", path)
	assert.False(t, ok)
	assert.Empty(t, answer)

	_, err := o.generate(context.Background(), "prompt", []byte{1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "model not found", apiErr.Message)
}

func TestOllama_QueryMissingImage(t *testing.T) {
	var hits int32
	o, _ := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, ok := o.Query(context.Background(), "prompt", filepath.Join(t.TempDir(), "missing.png"))
	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

// unusedAddr returns a loopback address nothing is listening on
func unusedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestOllama_EnsureServerUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Ollama.URL = "http://" + unusedAddr(t)
	cfg.Ollama.ServeCommand = nil

	o := NewOllama(cfg, arbor.NewLogger())
	assert.Error(t, o.EnsureServer(context.Background()))

	_, ok := o.Query(context.Background(), "prompt", "any.png")
	assert.False(t, ok)
}

func TestOllama_EnsureServerStartupTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Ollama.URL = "http://" + unusedAddr(t)
	cfg.Ollama.ServeCommand = []string{"sleep", "1"}
	cfg.Ollama.StartupWait = 100 * time.Millisecond
	cfg.Ollama.PollInterval = 20 * time.Millisecond

	start := time.Now()
	err := NewOllama(cfg, arbor.NewLogger()).EnsureServer(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not accept connections")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOllama_EnsureServerAlreadyRunning(t *testing.T) {
	o, _ := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.NoError(t, o.EnsureServer(context.Background()))
}

func TestClaude_Query(t *testing.T) {
	path, _ := writeScreenshot(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-sonnet-4-20250514", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "Sign In"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Claude.APIKey = "sk-test"
	c := NewClaude(cfg, arbor.NewLogger(), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	answer, ok := c.Query(context.Background(), "prompt", path)
	assert.True(t, ok)
	assert.Equal(t, "Sign In", answer)
}

func TestClaude_QueryServerError(t *testing.T) {
	path, _ := writeScreenshot(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Claude.APIKey = "sk-test"
	c := NewClaude(cfg, arbor.NewLogger(), option.WithBaseURL(srv.URL), option.WithMaxRetries(0))

	_, ok := c.Query(context.Background(), "prompt", path)
	assert.False(t, ok)
}

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				Data     []byte `json:"data"`
				MIMEType string `json:"mimeType"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
}

func newGeminiServer(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.Gemini.APIKey = "gm-test"
	cfg.Gemini.Model = "gemini-test"
	cfg.Gemini.BaseURL = srv.URL + "/"

	g, err := NewGemini(context.Background(), cfg, arbor.NewLogger())
	require.NoError(t, err)
	return g
}

func TestGemini_Query(t *testing.T) {
	path, data := writeScreenshot(t)

	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		assert.Equal(t, "gm-test", r.Header.Get("X-Goog-Api-Key"))

		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Contents, 1) {
			content := req.Contents[0]
			assert.Equal(t, "user", content.Role)
			if assert.Len(t, content.Parts, 2) {
				assert.Equal(t, "What is on the button?", content.Parts[0].Text)
				if assert.NotNil(t, content.Parts[1].InlineData) {
					assert.Equal(t, "image/png", content.Parts[1].InlineData.MIMEType)
					assert.Equal(t, data, content.Parts[1].InlineData.Data)
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "Sign In"}]},
				"finishReason": "STOP"
			}]
		}`))
	})

	answer, ok := g.Query(context.Background(), "What is on the button?", path)
	assert.True(t, ok)
	assert.Equal(t, "Sign In", answer)
	assert.Equal(t, "gemini", g.Name())
}

func TestGemini_QueryServerError(t *testing.T) {
	path, _ := writeScreenshot(t)

	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"bad image","status":"INVALID_ARGUMENT"}}`))
	})

	answer, ok := g.Query(context.Background(), "prompt", path)
	assert.False(t, ok)
	assert.Empty(t, answer)
}

func TestGemini_QueryNoCandidates(t *testing.T) {
	path, _ := writeScreenshot(t)

	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	})

	_, ok := g.Query(context.Background(), "prompt", path)
	assert.False(t, ok)
}

func TestGemini_QueryMissingImage(t *testing.T) {
	var hits int32
	g := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, ok := g.Query(context.Background(), "prompt", filepath.Join(t.TempDir(), "missing.png"))
	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestNew_GeminiWithKey(t *testing.T) {
	cfg := testConfig()
	cfg.Oracle.Provider = common.OracleProviderGemini
	cfg.Gemini.APIKey = "gm-test"

	assert.Equal(t, "gemini", New(context.Background(), cfg, arbor.NewLogger()).Name())
}
