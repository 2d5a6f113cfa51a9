package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoicepilot/internal/log"
)

// Config for the HTTP client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the suggestion service over JSON/HTTP. The service exposes
// POST {base}/details and POST {base}/template.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *log.Logger
}

var _ Suggester = (*Client)(nil)

// NewClient returns a client; an empty BaseURL yields a client whose calls
// fail with ErrDisabled.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    &http.Client{},
		logger:  logger.WithComponent(log.ComponentSuggest),
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

func (c *Client) SuggestDetails(ctx context.Context, req DetailsRequest) (Suggestion, error) {
	if strings.TrimSpace(req.TransactionDescription) == "" {
		return Suggestion{}, ErrEmptyDescription
	}
	var out Suggestion
	if err := c.post(ctx, "/details", req, &out); err != nil {
		return Suggestion{}, fmt.Errorf("suggest invoice details: %w", err)
	}
	return out, nil
}

func (c *Client) SuggestTemplate(ctx context.Context, req TemplateRequest) (TemplateSuggestion, error) {
	var out TemplateSuggestion
	if err := c.post(ctx, "/template", req, &out); err != nil {
		return TemplateSuggestion{}, fmt.Errorf("suggest template: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.WarnContext(ctx, "Suggestion request timed out", "path", path, log.FieldDuration, time.Since(start).Milliseconds())
		}
		return err
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Suggestion response",
		"path", path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
