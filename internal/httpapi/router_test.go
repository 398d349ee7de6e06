package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axtrace/chessapi/internal/board"
	"github.com/axtrace/chessapi/internal/engine"
	"github.com/axtrace/chessapi/internal/service"
)

const (
	testKey  = "test_key_123"
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// stubSession behaves like a healthy engine that always answers e2e4.
type stubSession struct {
	startErr error
	pingErr  error
	started  bool
}

func (s *stubSession) EnsureStarted(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubSession) Analyze(_ context.Context, pos board.Position, _ engine.Limit) (engine.Result, error) {
	if reason, over := board.Terminal(pos); over {
		return engine.Result{Kind: engine.KindGameOver, Reason: reason}, nil
	}
	return engine.Result{Kind: engine.KindMove, Move: "e2e4"}, nil
}

func (s *stubSession) Ping(context.Context, time.Duration) (engine.PingStatus, error) {
	if s.pingErr != nil {
		return engine.PingTimeout, s.pingErr
	}
	return engine.PingAlive, nil
}

func (s *stubSession) EngineName() string { return "" }

func (s *stubSession) Stats() engine.Stats {
	return engine.Stats{Running: s.started, Engine: "Stockfish 16", Spawns: 1}
}

func newTestServer(t *testing.T, s *stubSession) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, s, Options{APIKey: testKey, GzipMinSize: 128})
}

func newTestServerWith(t *testing.T, s *stubSession, opts Options) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()
	router, err := NewRouter(log, opts,
		service.NewCoordinator(s, service.DefaultLimits, log),
		service.NewHealthMonitor(s, 10*time.Millisecond, log),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, key *string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != nil {
		req.Header.Set("X-API-Key", *key)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func key(s string) *string { return &s }

func TestAuth(t *testing.T) {
	srv := newTestServer(t, &stubSession{})
	body := `{"fen":"` + startFEN + `","depth":1}`

	resp, out := do(t, srv, http.MethodPost, "/bestmove/", body, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Could not validate API key", out["detail"])

	resp, out = do(t, srv, http.MethodPost, "/bestmove/", body, key("wrong"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Invalid API key", out["detail"])

	resp, _ = do(t, srv, http.MethodGet, "/healthcheck", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/engine/status", "", key(""))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBestMove_ValidMove(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	for _, path := range []string{"/bestmove/", "/bestmove"} {
		t.Run(path, func(t *testing.T) {
			resp, out := do(t, srv, http.MethodPost, path, `{"fen":"`+startFEN+`","depth":1}`, key(testKey))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.Equal(t, "ok", out["status"])
			assert.Equal(t, "e2e4", out["best_move"])
			assert.InDelta(t, 0.01, out["used_time"], 1e-9)
		})
	}
}

func TestBestMove_TimeIsClamped(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	tests := []struct {
		time string
		want float64
	}{
		{"0.5", 0.5},
		{"2.0", 2.0},
		{"2.5", 2.0},
		{"-1", 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			body := `{"fen":"` + startFEN + `","depth":1,"time":` + tt.time + `}`
			resp, out := do(t, srv, http.MethodPost, "/bestmove/", body, key(testKey))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "ok", out["status"])
			assert.InDelta(t, tt.want, out["used_time"], 1e-9)
		})
	}
}

func TestBestMove_GameOver(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	resp, out := do(t, srv, http.MethodPost, "/bestmove/", `{"fen":"8/8/8/8/8/8/8/7k w - - 0 1","depth":1}`, key(testKey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "game_over", out["status"])
	assert.Equal(t, "Game is over", out["error"])
	assert.Equal(t, "INSUFFICIENT_MATERIAL", out["reason"])
	assert.NotContains(t, out, "best_move")
}

func TestBestMove_Unprocessable(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	tests := []struct {
		name    string
		body    string
		wantLoc []any
		wantMsg string
	}{
		{"invalid fen", `{"fen":"invalid_fen","depth":1}`, []any{"body", "fen"}, "Invalid FEN string"},
		{"bad side to move", `{"fen":"8/8/8/8/8/8/8/7k x - - 0 1"}`, []any{"body", "fen"}, "Invalid FEN string"},
		{"missing fen", `{"depth":1}`, []any{"body", "fen"}, "Field required"},
		{"depth not an integer", `{"fen":"` + startFEN + `","depth":"deep"}`, []any{"body", "depth"}, "valid integer"},
		{"time not a number", `{"fen":"` + startFEN + `","time":[1]}`, []any{"body", "time"}, "valid number"},
		{"not json", `fen=1`, []any{"body"}, "JSON decode error"},
		{"empty body", ``, []any{"body"}, "Field required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := do(t, srv, http.MethodPost, "/bestmove/", tt.body, key(testKey))
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			detail, ok := out["detail"].([]any)
			require.True(t, ok, "detail must be a list: %v", out)
			require.Len(t, detail, 1)
			entry := detail[0].(map[string]any)
			assert.Equal(t, tt.wantLoc, entry["loc"])
			assert.Contains(t, entry["msg"], tt.wantMsg)
		})
	}
}

func TestBestMove_EngineInitFailure(t *testing.T) {
	srv := newTestServer(t, &stubSession{startErr: errors.New("engine startup failed: spawn: no such file")})

	resp, out := do(t, srv, http.MethodPost, "/bestmove/", `{"fen":"`+startFEN+`"}`, key(testKey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Engine initialization failed: engine startup failed: spawn: no such file", out["details"])
}

func TestBestMove_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	body := `{"fen":"` + startFEN + `","pad":"` + strings.Repeat("x", maxMoveBody) + `"}`
	resp, out := do(t, srv, http.MethodPost, "/bestmove/", body, key(testKey))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "Request body too large", out["detail"])
}

func TestHealthcheck(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	resp, out := do(t, srv, http.MethodGet, "/healthcheck", "", key(testKey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "Stockfish", out["engine"])
}

func TestHealthcheck_PingTimeout(t *testing.T) {
	srv := newTestServer(t, &stubSession{pingErr: errors.New("no readyok within 10ms")})

	resp, out := do(t, srv, http.MethodGet, "/healthcheck", "", key(testKey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "no readyok within 10ms", out["details"])
}

func TestEngineStatus(t *testing.T) {
	s := &stubSession{started: true}
	srv := newTestServer(t, s)

	resp, out := do(t, srv, http.MethodGet, "/engine/status", "", key(testKey))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["running"])
	assert.Equal(t, "Stockfish 16", out["engine"])
	assert.InDelta(t, 1, out["spawns"], 0)
}

func TestRouting(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	resp, out := do(t, srv, http.MethodGet, "/bestmove/", "", key(testKey))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "Method Not Allowed", out["detail"])

	resp, out = do(t, srv, http.MethodGet, "/nope", "", key(testKey))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", out["detail"])
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, &stubSession{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthcheck", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("X-Request-ID", "client-trace.42")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "client-trace.42", resp.Header.Get("X-Request-ID"))

	req.Header.Set("X-Request-ID", "bad id with spaces")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	rid := resp.Header.Get("X-Request-ID")
	assert.Len(t, rid, 8)
	assert.True(t, validRequestID(rid))
}

// getGzip fetches path asking for gzip, leaving the body undecoded.
func getGzip(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestCompression(t *testing.T) {
	t.Run("above min size", func(t *testing.T) {
		srv := newTestServerWith(t, &stubSession{started: true}, Options{APIKey: testKey, GzipMinSize: 16})

		resp, raw := getGzip(t, srv, "/engine/status")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

		zr, err := gzip.NewReader(strings.NewReader(string(raw)))
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.NewDecoder(zr).Decode(&out))
		assert.Equal(t, "Stockfish 16", out["engine"])
	})

	t.Run("below min size", func(t *testing.T) {
		srv := newTestServerWith(t, &stubSession{}, Options{APIKey: testKey, GzipMinSize: 1024})

		resp, raw := getGzip(t, srv, "/healthcheck")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Content-Encoding"))
		assert.JSONEq(t, `{"status":"ok","engine":"Stockfish"}`, string(raw))
	})
}

func TestNewRouter_NegativeGzipMinSize(t *testing.T) {
	s := &stubSession{}
	_, err := NewRouter(zerolog.Nop(), Options{APIKey: testKey, GzipMinSize: -1},
		service.NewCoordinator(s, service.DefaultLimits, zerolog.Nop()),
		service.NewHealthMonitor(s, 0, zerolog.Nop()),
	)
	require.Error(t, err)
}
