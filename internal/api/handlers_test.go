package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finn-shopping-assistant/server/internal/agent/model"
	"github.com/finn-shopping-assistant/server/internal/core"
	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	"github.com/finn-shopping-assistant/server/internal/images"
)

type fakeChatter struct {
	mu    sync.Mutex
	calls []model.TurnInput
	err   error
}

func (f *fakeChatter) ProcessMessage(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &model.TurnOutput{ThreadID: in.ThreadID, Response: "echo: " + in.Message}, nil
}

type fakeImages map[string][]byte

func (f fakeImages) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := f[name]
	if !ok {
		return nil, images.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newServer(t *testing.T, chat Chatter, env core.Environment) *httptest.Server {
	t.Helper()

	h := NewAPIHandler(chat, fakeImages{"Nimbus 25.png": []byte("\x89PNG")}, env)
	srv := httptest.NewServer(NewRouter(h, Config{CORSOrigins: []string{"*"}}, prometheus.NewRegistry()))
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, body string, header map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST /chat error = %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestChatHandler(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{}
	srv := newServer(t, chat, core.Development)

	resp, data := postChat(t, srv, `{"message":"hi","session_id":"s-1","history":[{"role":"user","content":"earlier"}]}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, data)
	}
	var got ChatResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Response != "echo: hi" || got.SessionID != "s-1" {
		t.Fatalf("response = %+v", got)
	}
	if len(chat.calls) != 1 || len(chat.calls[0].History) != 1 || chat.calls[0].History[0].Content != "earlier" {
		t.Fatalf("ProcessMessage calls = %+v", chat.calls)
	}
}

func TestChatHandlerSessionID(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{}
	srv := newServer(t, chat, core.Development)

	resp, _ := postChat(t, srv, `{"message":"hi"}`, map[string]string{SessionHeader: "from-header"})
	if got := resp.Header.Get(SessionHeader); got != "from-header" {
		t.Fatalf("%s = %q, want from-header", SessionHeader, got)
	}

	postChat(t, srv, `{"message":"hi"}`, nil)
	postChat(t, srv, `{"message":"hi"}`, nil)
	if len(chat.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(chat.calls))
	}
	a, b := chat.calls[1].ThreadID, chat.calls[2].ThreadID
	if a == "" || a == b {
		t.Fatalf("generated session ids = %q, %q, want distinct", a, b)
	}
}

func TestChatHandlerBadRequest(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{}
	srv := newServer(t, chat, core.Production)

	for _, body := range []string{``, `{`, `{"message":"  "}`, `{"history":[]}`} {
		resp, data := postChat(t, srv, body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("POST %q status = %d, want 400", body, resp.StatusCode)
		}
		var got ErrorResponse
		if err := json.Unmarshal(data, &got); err != nil || got.Error == "" {
			t.Fatalf("POST %q body = %s, want {error}", body, data)
		}
		if got.Traceback != "" {
			t.Fatalf("POST %q traceback exposed in production", body)
		}
	}
	if len(chat.calls) != 0 {
		t.Fatalf("core reached %d times for malformed requests", len(chat.calls))
	}
}

func TestChatHandlerServiceError(t *testing.T) {
	t.Parallel()

	chat := &fakeChatter{err: errx.WrapRedis(errors.New("connection refused"))}
	srv := newServer(t, chat, core.Development)

	resp, data := postChat(t, srv, `{"message":"hi"}`, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	var got ErrorResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Error != errx.RedisErrorMessage || !strings.Contains(got.Traceback, "connection refused") {
		t.Fatalf("error body = %+v", got)
	}
}

func TestImageHandler(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &fakeChatter{}, core.Development)

	resp, err := srv.Client().Get(srv.URL + "/images/Nimbus%2025.png")
	if err != nil {
		t.Fatalf("GET image error = %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || string(data) != "\x89PNG" {
		t.Fatalf("GET image = %d %q %q", resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}

	for _, path := range []string{"/images/missing.png", "/images/..%2Fsecret.png"} {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
		if path == "/images/missing.png" && strings.TrimSpace(string(data)) != "Image not found" {
			t.Fatalf("GET %s body = %q", path, data)
		}
	}
}

func TestTestAndMetricsEndpoints(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &fakeChatter{}, core.Development)

	resp, err := srv.Client().Get(srv.URL + "/test")
	if err != nil {
		t.Fatalf("GET /test error = %v", err)
	}
	var got map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if got["status"] != "ok" {
		t.Fatalf("GET /test = %v", got)
	}

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", resp.StatusCode)
	}
}
