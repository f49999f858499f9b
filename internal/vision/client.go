// internal/vision/client.go
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"imageseo/internal/models"
)

// ErrMissingAPIKey means the client has no credential configured. Tasks that
// hit it fail permanently; redelivery will not help.
var ErrMissingAPIKey = errors.New("vision: missing API key")

// TransientError marks network errors, timeouts, rate limits and 5xx
// responses. Redelivering the task is safe because both pipelines are
// idempotent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "vision: transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// APIError is a non-retryable HTTP failure from the model endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision: http %d: %s", e.StatusCode, e.Body)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Part is one element of the ordered user-message content: either a text
// segment or an inlined image. The ordering is load-bearing in bulk mode,
// where each image follows its own introduction text.
type Part struct {
	Text     string
	Data     []byte
	MimeType string
}

func TextPart(text string) Part { return Part{Text: text} }

func ImagePart(data []byte, mimeType string) Part {
	return Part{Data: data, MimeType: mimeType}
}

func (p Part) isImage() bool { return len(p.Data) > 0 }

// DescribeRequest carries one model call: a prompt plus one or more images,
// already ordered.
type DescribeRequest struct {
	Model     string
	Parts     []Part
	MaxTokens int
}

// Client sends vision prompts to an OpenAI-compatible chat completions
// endpoint. Images are inlined as base64 data URIs.
type Client struct {
	cfg        models.OpenAIConfig
	httpClient *http.Client
	maxRetries int
	log        *zap.Logger
}

func NewClient(cfg models.OpenAIConfig, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BulkModel == "" {
		cfg.BulkModel = "gpt-4o-mini"
	}
	timeout := 90 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	maxRetries := 2
	if cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
	}
}

// Model returns the configured single-image model name.
func (c *Client) Model() string { return c.cfg.Model }

// BulkModel returns the configured bulk model name.
func (c *Client) BulkModel() string { return c.cfg.BulkModel }

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe sends one user turn composed of req.Parts in order and returns the
// model's raw text content. It blocks until a result or a definitive error;
// retryable failures are retried with backoff before being surfaced as
// *TransientError.
func (c *Client) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	const op = "vision.Describe"

	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingAPIKey)
	}
	if len(req.Parts) == 0 {
		return "", fmt.Errorf("%s: no parts", op)
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	content := make([]contentPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.isImage() {
			content = append(content, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: dataURL(p.MimeType, p.Data), Detail: "auto"},
			})
		} else {
			content = append(content, contentPart{Type: "text", Text: p.Text})
		}
	}

	body := chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: content}},
		MaxTokens: req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("retrying vision call",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(jitter(time.Duration(attempt) * time.Second)):
			}
		}

		text, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// Caller gave up; do not keep retrying on its behalf.
			return "", fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	if IsTransient(lastErr) {
		return "", fmt.Errorf("%s: %w", op, lastErr)
	}
	return "", fmt.Errorf("%s: %w", op, &TransientError{Err: lastErr})
}

func (c *Client) doOnce(ctx context.Context, body chatRequest) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransientError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if retryableStatus(resp.StatusCode) {
			return "", &TransientError{Err: apiErr}
		}
		return "", apiErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

func retryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryable(err error) bool {
	if IsTransient(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// jitter spreads retries by +/-20% around base.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	return time.Duration(float64(base) - delta + rand.Float64()*2*delta)
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
