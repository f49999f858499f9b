package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"imageseo/internal/models"
)

func testClient(t *testing.T, url string, maxRetries int) *Client {
	t.Helper()
	return NewClient(models.OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "gpt-4o",
		MaxRetries: maxRetries,
	}, zap.NewNop())
}

func TestDescribe_Success(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"alt\":\"A cat\",\"name\":\"cute-cat\"}"}}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	raw, err := c.Describe(context.Background(), DescribeRequest{
		Parts: []Part{
			TextPart("describe this"),
			ImagePart([]byte{1, 2, 3}, "image/png"),
		},
	})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(raw, "cute-cat") {
		t.Errorf("unexpected raw content %q", raw)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", gotBody.Messages)
	}
	content := gotBody.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected 2 content parts, got %d", len(content))
	}
	if content[0].Type != "text" || content[0].Text != "describe this" {
		t.Errorf("unexpected text part: %+v", content[0])
	}
	if content[1].Type != "image_url" || content[1].ImageURL == nil {
		t.Fatalf("unexpected image part: %+v", content[1])
	}
	if !strings.HasPrefix(content[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %q", content[1].ImageURL.URL)
	}
	if content[1].ImageURL.Detail != "auto" {
		t.Errorf("detail = %q", content[1].ImageURL.Detail)
	}
}

func TestDescribe_PartOrderPreserved(t *testing.T) {
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 0)
	_, err := c.Describe(context.Background(), DescribeRequest{
		Parts: []Part{
			TextPart("instruction"),
			TextPart("Image ID 1."),
			ImagePart([]byte{1}, "image/jpeg"),
			TextPart("Image ID 2."),
			ImagePart([]byte{2}, "image/png"),
		},
	})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	wantTypes := []string{"text", "text", "image_url", "text", "image_url"}
	content := gotBody.Messages[0].Content
	if len(content) != len(wantTypes) {
		t.Fatalf("expected %d parts, got %d", len(wantTypes), len(content))
	}
	for i, want := range wantTypes {
		if content[i].Type != want {
			t.Errorf("part %d type = %q, want %q", i, content[i].Type, want)
		}
	}
}

func TestDescribe_MissingAPIKey(t *testing.T) {
	c := NewClient(models.OpenAIConfig{}, zap.NewNop())
	_, err := c.Describe(context.Background(), DescribeRequest{Parts: []Part{TextPart("x")}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if IsTransient(err) {
		t.Error("config error must not be transient")
	}
}

func TestDescribe_ServerErrorIsTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 1)
	_, err := c.Describe(context.Background(), DescribeRequest{Parts: []Part{TextPart("x")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("expected transient error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestDescribe_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	_, err := c.Describe(context.Background(), DescribeRequest{Parts: []Part{TextPart("x")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Errorf("4xx must not be transient: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected APIError with 400, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestDescribe_RateLimitRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 2)
	raw, err := c.Describe(context.Background(), DescribeRequest{Parts: []Part{TextPart("x")}})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if raw != "ok" {
		t.Errorf("raw = %q", raw)
	}
}

func TestDescribe_EmptyParts(t *testing.T) {
	c := testClient(t, "http://localhost:1", 0)
	if _, err := c.Describe(context.Background(), DescribeRequest{}); err == nil {
		t.Error("expected error for empty parts")
	}
}
