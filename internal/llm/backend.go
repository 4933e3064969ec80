// Package llm implements text-generation backends over provider HTTP APIs.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Config describes one configured backend. APIKeyEnv names the environment
// variable holding the key so credentials never live in config files.
type Config struct {
	Name        string
	Provider    string
	BaseURL     string
	Model       string
	APIKeyEnv   string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// provider adapts one vendor's wire format.
type provider interface {
	buildURL(baseURL string) string
	setHeaders(req *http.Request, apiKey string)
	buildBody(model, systemPrompt, userPrompt string, maxTokens int, temperature *float64) ([]byte, error)
	parseResponse(body []byte) (string, error)
}

// Backend implements analysis.Backend for a single provider endpoint.
type Backend struct {
	cfg        Config
	prov       provider
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBackend builds a Backend from config. Unknown provider kinds fail at
// construction time so misconfiguration surfaces at startup.
func NewBackend(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Backend, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("backend %s: model is required", cfg.Name)
	}
	var prov provider
	switch cfg.Provider {
	case "openai":
		prov = openaiProvider{}
	case "anthropic":
		prov = anthropicProvider{}
	default:
		return nil, fmt.Errorf("backend %s: unknown provider %q", cfg.Name, cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:        cfg,
		prov:       prov,
		httpClient: httpClient,
		logger:     logger.With(zap.String("backend", cfg.Name)),
	}, nil
}

// Name returns the configured backend name.
func (b *Backend) Name() string {
	return b.cfg.Name
}

// Generate performs one completion request and returns the generated text.
func (b *Backend) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := b.prov.buildBody(b.cfg.Model, systemPrompt, userPrompt, b.cfg.MaxTokens, b.cfg.Temperature)
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, b.prov.buildURL(b.cfg.BaseURL), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.prov.setHeaders(req, b.apiKey())

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", b.cfg.Name, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", b.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", b.cfg.Name, resp.StatusCode, truncateBody(respBody))
	}

	text, err := b.prov.parseResponse(respBody)
	if err != nil {
		return "", err
	}
	b.logger.Debug("completion finished",
		zap.String("model", b.cfg.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

func (b *Backend) apiKey() string {
	if b.cfg.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.cfg.APIKeyEnv)
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
