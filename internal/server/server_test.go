package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tmplview/internal/config"
	"github.com/conneroisu/tmplview/internal/engine"
	"github.com/conneroisu/tmplview/internal/locator"
)

var testViews = map[string]string{
	"index":  `<% layout "layout" %><h1>Welcome</h1>`,
	"hello":  `<% layout "layout" %><p>Hello <%= model.name %></p>`,
	"layout": `<html><body><%= renderBody() %></body></html>`,
	"broken": `<p><%= model.name `,
}

func testConfig(hotReload, diagnostics bool) *config.Config {
	return &config.Config{
		Views:       config.ViewsConfig{Extension: ".html", Cache: true, MaxDepth: 32, Currency: "USD"},
		Server:      config.ServerConfig{Host: "localhost", Port: 8080, Environment: "test"},
		Development: config.DevelopmentConfig{HotReload: hotReload, Diagnostics: diagnostics},
	}
}

func newTestServer(t *testing.T, hotReload, diagnostics bool) *Server {
	t.Helper()
	eng := engine.New(engine.Options{Cache: true, Production: !diagnostics}, locator.NewMapLocator(testViews))
	return New(testConfig(hotReload, diagnostics), eng, nil, nil)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleView(t *testing.T) {
	s := newTestServer(t, false, true)
	h := s.Handler()

	rr := get(t, h, "/hello?name=Ada")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<html><body><p>Hello Ada</p></body></html>", rr.Body.String())

	rr = get(t, h, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Welcome</h1>")
}

func TestHandleViewNotFound(t *testing.T) {
	s := newTestServer(t, false, true)

	rr := get(t, s.Handler(), "/nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "nowhere")
}

func TestHandleViewDiagnostics(t *testing.T) {
	dev := get(t, newTestServer(t, false, true).Handler(), "/broken")
	assert.Equal(t, http.StatusInternalServerError, dev.Code)
	assert.Contains(t, dev.Body.String(), `class="view-error"`)
	assert.Contains(t, dev.Body.String(), "&lt;p&gt;")

	prod := get(t, newTestServer(t, false, false).Handler(), "/broken")
	assert.Equal(t, http.StatusInternalServerError, prod.Code)
	assert.NotContains(t, prod.Body.String(), "model.name")
	assert.Contains(t, prod.Body.String(), "view rendering failed")
}

func TestReloadScriptInjection(t *testing.T) {
	rr := get(t, newTestServer(t, true, true).Handler(), "/hello?name=Ada")
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "new WebSocket")
	assert.Less(t, strings.Index(body, "<script>"), strings.Index(body, "</body>"))

	rr = get(t, newTestServer(t, false, true).Handler(), "/hello?name=Ada")
	assert.NotContains(t, rr.Body.String(), "<script>")
}

func TestInjectReloadScript(t *testing.T) {
	assert.Equal(t, "<p>fragment</p>", injectReloadScript("<p>fragment</p>"))
	assert.True(t, strings.HasSuffix(injectReloadScript("<BODY>x</BODY>"), reloadScript+"</BODY>"))
}

func TestQueryModel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?a=1&b=2&b=3", nil)
	model := queryModel(req.URL.Query())
	assert.Equal(t, "1", model["a"])
	assert.Equal(t, []string{"2", "3"}, model["b"])
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t, false, true)
	h := s.Handler()

	rr := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])

	get(t, h, "/hello?name=Ada")
	get(t, h, "/hello?name=Bob")

	rr = get(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats struct {
		Engine  engine.Stats `json:"engine"`
		HitRate float64      `json:"hit_rate"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.Engine.Renders)
	assert.GreaterOrEqual(t, stats.Engine.Cache.Hits, int64(1))
}

func TestWebSocketReload(t *testing.T) {
	s := newTestServer(t, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{ts.URL}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)

	s.reload([]string{"hello"}, []string{"hello"})

	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"hello"}, msg.Targets)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, true, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}},
	})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestWatchViewsInvalidatesAndBroadcasts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"), []byte("v1"), 0o644))

	views := locator.NewDirLocator(root, ".html")
	eng := engine.New(engine.Options{Cache: true, Extension: ".html"}, views)
	s := New(testConfig(true, true), eng, views, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)
	require.NoError(t, s.watchViews(ctx))
	defer s.Shutdown(context.Background())

	out, err := eng.Render(ctx, "page", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", out)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"), []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		out, err := eng.Render(ctx, "page", nil)
		return err == nil && out == "v2"
	}, 3*time.Second, 50*time.Millisecond)
}

func TestShutdownIdempotent(t *testing.T) {
	s := newTestServer(t, false, true)
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestStartAndCancel(t *testing.T) {
	s := newTestServer(t, false, true)
	s.config.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
