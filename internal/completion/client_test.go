package completion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tag-gateway/internal/models"
)

var testMessages = []models.Message{
	{Role: "system", Content: "return json"},
	{Role: "user", Content: "lofi beats"},
}

// TestClient_Complete_RequestShape checks the outbound call: path, auth,
// model, messages and sampling parameters.
func TestClient_Complete_RequestShape(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotCT   string
		gotBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("upstream received invalid JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"tags\":[]}"}}]}`))
	}))
	defer server.Close()

	client, err := New(ClientConfig{
		UpstreamURL: server.URL + "/v1",
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.Complete(context.Background(), testMessages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected OK result, got status %d", result.StatusCode)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("expected path /v1/chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotCT != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotCT)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(400) {
		t.Errorf("expected max_tokens 400, got %v", gotBody["max_tokens"])
	}
	if gotBody["temperature"] != 0.35 {
		t.Errorf("expected temperature 0.35, got %v", gotBody["temperature"])
	}
	if gotBody["n"] != float64(1) {
		t.Errorf("expected n 1, got %v", gotBody["n"])
	}
	if _, ok := gotBody["stop"]; ok {
		t.Errorf("expected no stop sequence, got %v", gotBody["stop"])
	}
	if _, ok := gotBody["stream"]; ok {
		t.Errorf("expected no stream flag, got %v", gotBody["stream"])
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", gotBody["messages"])
	}
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["role"] != "system" || second["role"] != "user" {
		t.Errorf("unexpected roles %v, %v", first["role"], second["role"])
	}
	if second["content"] != "lofi beats" {
		t.Errorf("unexpected user content %v", second["content"])
	}
}

// TestClient_Complete_NonSuccessIsResult checks that upstream error
// statuses come back as results with the raw body intact.
func TestClient_Complete_NonSuccessIsResult(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"401 Unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`},
		{"429 Rate Limited", http.StatusTooManyRequests, `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`},
		{"500 plain text", http.StatusInternalServerError, "upstream exploded\n"},
		{"503 empty body", http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := New(ClientConfig{UpstreamURL: server.URL, Model: "m"})
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			result, err := client.Complete(context.Background(), testMessages)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.OK() {
				t.Errorf("expected non-OK result for %d", tt.statusCode)
			}
			if result.StatusCode != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, result.StatusCode)
			}
			if string(result.Body) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, string(result.Body))
			}
		})
	}
}

func TestClient_Complete_TimeoutHandling(t *testing.T) {
	slowServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slowServer.Close()

	client, err := New(ClientConfig{
		UpstreamURL: slowServer.URL,
		Model:       "m",
		Timeout:     50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Complete(context.Background(), testMessages)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "upstream request failed") {
		t.Errorf("expected error to contain 'upstream request failed', got: %v", err)
	}
}

func TestClient_Complete_ConnectionRefused(t *testing.T) {
	client, err := New(ClientConfig{
		UpstreamURL: "http://localhost:59999",
		Model:       "m",
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Complete(context.Background(), testMessages)
	if err == nil {
		t.Fatal("expected connection error, got nil")
	}
	if !strings.Contains(err.Error(), "upstream request failed") {
		t.Errorf("expected error to contain 'upstream request failed', got: %v", err)
	}
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	slowServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slowServer.Close()
	defer close(release)

	client, err := New(ClientConfig{UpstreamURL: slowServer.URL, Model: "m", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = client.Complete(ctx, testMessages)
	if err == nil {
		t.Fatal("expected context cancellation error, got nil")
	}
	if !strings.Contains(err.Error(), "upstream request failed") {
		t.Errorf("expected error to contain 'upstream request failed', got: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(ClientConfig{Model: "m"}); err == nil {
		t.Error("expected error for empty upstream URL")
	}
	if _, err := New(ClientConfig{UpstreamURL: "http://localhost"}); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New(ClientConfig{UpstreamURL: "://bad", Model: "m"}); err == nil {
		t.Error("expected error for unparseable URL")
	}
}

func TestNew_EndpointResolution(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"https://proxy.local/v1/chat/completions", "https://proxy.local/v1/chat/completions"},
		{"http://localhost:8000", "http://localhost:8000/chat/completions"},
	}

	for _, tt := range tests {
		client, err := New(ClientConfig{UpstreamURL: tt.base, Model: "m"})
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.base, err)
		}
		if got := client.Endpoint(); got != tt.want {
			t.Errorf("endpoint for %s: expected %s, got %s", tt.base, tt.want, got)
		}
	}
}

func TestResult_Content(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"content present", `{"choices":[{"message":{"content":"hello"}}]}`, "hello", false},
		{"first choice wins", `{"choices":[{"message":{"content":"a"}},{"message":{"content":"b"}}]}`, "a", false},
		{"no choices", `{"choices":[]}`, "", false},
		{"choices absent", `{"id":"x"}`, "", false},
		{"null content", `{"choices":[{"message":{"content":null}}]}`, "", false},
		{"message absent", `{"choices":[{"index":0}]}`, "", false},
		{"false content", `{"choices":[{"message":{"content":false}}]}`, "", false},
		{"zero content", `{"choices":[{"message":{"content":0}}]}`, "", false},
		{"choices not a list", `{"choices":{"message":{"content":"x"}}}`, "", false},
		{"top-level array", `[1,2]`, "", false},
		{"top-level null", `null`, "", true},
		{"not json", `<html>oops</html>`, "", true},
		{"content not a string", `{"choices":[{"message":{"content":42}}]}`, "", true},
		{"true content", `{"choices":[{"message":{"content":true}}]}`, "", true},
		{"object content", `{"choices":[{"message":{"content":{"tags":["a"]}}}]}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &Result{StatusCode: http.StatusOK, Body: []byte(tt.body)}
			got, err := result.Content()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
