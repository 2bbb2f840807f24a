package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
)

const generatePath = "/api/generate"

// ollamaRequest is the non-streaming generate request; images are base64 encoded by encoding/json
type ollamaRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images [][]byte `json:"images"`
	Stream bool     `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Ollama queries a locally hosted vision model over HTTP
type Ollama struct {
	baseURL      string
	model        string
	serveCommand []string
	startupWait  time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	logger       arbor.ILogger

	ensureOnce sync.Once
	ensureErr  error
}

// NewOllama creates a local oracle. The server is not contacted until EnsureServer or Query.
func NewOllama(cfg *common.Config, logger arbor.ILogger) *Ollama {
	timeout := cfg.Oracle.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pollInterval := cfg.Ollama.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Ollama{
		baseURL:      strings.TrimRight(cfg.Ollama.URL, "/"),
		model:        cfg.Ollama.Model,
		serveCommand: cfg.Ollama.ServeCommand,
		startupWait:  cfg.Ollama.StartupWait,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

func (o *Ollama) Name() string { return string(common.OracleProviderOllama) }

// EnsureServer makes sure the local server accepts connections, launching the serve
// command when it does not. It runs once; later calls return the first result.
func (o *Ollama) EnsureServer(ctx context.Context) error {
	o.ensureOnce.Do(func() {
		o.ensureErr = o.ensureServer(ctx)
	})
	return o.ensureErr
}

func (o *Ollama) ensureServer(ctx context.Context) error {
	addr, err := o.hostPort()
	if err != nil {
		return err
	}

	if reachable(addr) {
		o.logger.Debug().Str("addr", addr).Msg("Ollama server already running")
		return nil
	}

	if len(o.serveCommand) == 0 {
		return fmt.Errorf("ollama server at %s is not reachable and no serve command is configured", addr)
	}

	o.logger.Info().Strs("command", o.serveCommand).Msg("Starting Ollama server")

	cmd := exec.Command(o.serveCommand[0], o.serveCommand[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", o.serveCommand[0], err)
	}
	go cmd.Wait() // reap; the server outlives the session

	deadline := time.NewTimer(o.startupWait)
	defer deadline.Stop()
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("ollama server did not accept connections on %s within %s", addr, o.startupWait)
		case <-ticker.C:
			if reachable(addr) {
				o.logger.Info().Int("pid", cmd.Process.Pid).Str("addr", addr).Msg("Ollama server is ready")
				return nil
			}
		}
	}
}

func (o *Ollama) hostPort() (string, error) {
	u, err := url.Parse(o.baseURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid ollama url %q", o.baseURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443"), nil
	}
	return net.JoinHostPort(u.Hostname(), "80"), nil
}

func reachable(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Query posts the prompt and image to /api/generate; any failure is logged and reported as absent
func (o *Ollama) Query(ctx context.Context, prompt, imagePath string) (string, bool) {
	if err := o.EnsureServer(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("Ollama query skipped: server unavailable")
		return "", false
	}

	data, _, err := screenshot(imagePath)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Ollama query skipped")
		return "", false
	}

	answer, err := o.generate(ctx, prompt, data)
	if err != nil {
		o.logger.Error().Err(err).Str("model", o.model).Msg("Ollama query failed")
		return "", false
	}

	o.logger.Debug().Str("model", o.model).Str("answer", answer).Msg("Ollama answered")
	return answer, true
}

func (o *Ollama) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		Images: [][]byte{image},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			Endpoint:   generatePath,
		}
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Response, nil
}
