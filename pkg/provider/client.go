package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/a2bot/relay/pkg/chat"
	"github.com/a2bot/relay/pkg/debug"
	"github.com/a2bot/relay/pkg/observability"
)

// User-facing notices. The front-end shows these verbatim, so they stay
// short and free of diagnostic detail.
const (
	noticeMissingKey = "The OpenAI API key is not configured. Please contact the administrator."
	noticeUpstream   = "The OpenAI API request failed (status %d). Please try again later."
	noticeTransport  = "The OpenAI API request failed. Please try again later."
)

const (
	defaultCompletionTimeout = 30 * time.Second
	defaultCatalogTimeout    = 10 * time.Second

	// temperature is fixed; the chat surface exposes no sampling controls.
	temperature = 0.7

	// maxLoggedBody bounds upstream error bodies in logs.
	maxLoggedBody = 1000
)

// Config holds the connection settings for the backend.
type Config struct {
	// BaseURL is the API root including any version prefix,
	// e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey authenticates requests. When empty, Complete degrades to a
	// fixed notice without touching the network and ListModels returns
	// an empty catalog.
	APIKey string

	// CompletionTimeout bounds a single completion call (default: 30s).
	CompletionTimeout time.Duration

	// CatalogTimeout bounds a model list call (default: 10s).
	CatalogTimeout time.Duration

	// HTTPClient is shared across completion and catalog traffic. When
	// nil a plain client is created. Request deadlines come from
	// per-call contexts, not from the client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client talks to an OpenAI-compatible Chat Completions backend.
type Client struct {
	baseURL           string
	apiKey            string
	completionTimeout time.Duration
	catalogTimeout    time.Duration
	http              *http.Client
	logger            *slog.Logger
}

// NewClient creates a backend client. The base URL is normalized by
// stripping any trailing slash.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	completionTimeout := cfg.CompletionTimeout
	if completionTimeout <= 0 {
		completionTimeout = defaultCompletionTimeout
	}
	catalogTimeout := cfg.CatalogTimeout
	if catalogTimeout <= 0 {
		catalogTimeout = defaultCatalogTimeout
	}
	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:            cfg.APIKey,
		completionTimeout: completionTimeout,
		catalogTimeout:    catalogTimeout,
		http:              httpClient,
		logger:            logger,
	}
}

// Complete sends the message array to the Chat Completions endpoint and
// returns the first choice's content, trimmed. No retries are performed;
// every failure is folded into a notice per the Result taxonomy.
func (c *Client) Complete(ctx context.Context, model string, messages []chat.Turn) Result {
	if c.apiKey == "" {
		return Result{Kind: ResultMissingKey, Text: noticeMissingKey}
	}

	ctx, cancel := context.WithTimeout(ctx, c.completionTimeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		c.logger.Error("failed to encode completion request", "model", model, "error", err)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build completion request", "model", model, "error", err)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	debug.Log("provider", "completion request", "model", model, "messages", len(messages))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("completions", "error").Inc()
		c.logger.Error("completion request failed", "model", model, "error", err)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}
	defer resp.Body.Close()

	observability.ProviderLatency.WithLabelValues("completions").Observe(time.Since(start).Seconds())
	observability.ProviderRequestsTotal.WithLabelValues("completions", strconv.Itoa(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read completion response", "model", model, "error", err)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("completion request rejected",
			"model", model,
			"status", resp.StatusCode,
			"body", debug.Truncate(string(raw), maxLoggedBody))
		return Result{Kind: ResultUpstreamError, Text: fmt.Sprintf(noticeUpstream, resp.StatusCode)}
	}

	debug.Raw("provider", string(raw))

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("failed to decode completion response", "model", model, "error", err)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}
	if len(out.Choices) == 0 {
		c.logger.Error("completion response carried no choices", "model", model)
		return Result{Kind: ResultTransportError, Text: noticeTransport}
	}

	return Result{Kind: ResultReply, Text: strings.TrimSpace(out.Choices[0].Message.Content)}
}

// ListModels fetches the model catalog and tags each entry. A missing
// API key or an unexpectedly shaped catalog yields an empty listing with
// a nil error; transport and status failures are returned to the caller,
// which decides whether they reach the user.
func (c *Client) ListModels(ctx context.Context) ([]ModelEntry, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.catalogTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("building model list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("models", "error").Inc()
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	observability.ProviderLatency.WithLabelValues("models").Observe(time.Since(start).Seconds())
	observability.ProviderRequestsTotal.WithLabelValues("models", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		c.logger.Error("model list request rejected", "status", resp.StatusCode, "body", string(raw))
		return nil, fmt.Errorf("listing models: unexpected status %d", resp.StatusCode)
	}

	var envelope modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}

	var items []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(envelope.Data, &items); err != nil {
		debug.Log("provider", "model catalog has unexpected shape", "error", err)
		return nil, nil
	}

	entries := make([]ModelEntry, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		entries = append(entries, ModelEntry{ID: item.ID, Capabilities: Capabilities(item.ID)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	debug.Log("provider", "model catalog fetched", "count", len(entries))
	return entries, nil
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
