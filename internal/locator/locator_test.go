package locator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tmplview/internal/errors"
	"github.com/conneroisu/tmplview/internal/logging"
	"github.com/conneroisu/tmplview/internal/store"
)

func TestResolverOrder(t *testing.T) {
	first := NewMapLocator(map[string]string{"home": "first"})
	second := NewMapLocator(map[string]string{"home": "second", "about": "about"})
	r := NewResolver(nil, first, second)

	text, ok := r.Locate(context.Background(), "home")
	require.True(t, ok)
	assert.Equal(t, "first", text)

	text, ok = r.Locate(context.Background(), "about")
	require.True(t, ok)
	assert.Equal(t, "about", text)

	_, ok = r.Locate(context.Background(), "missing")
	assert.False(t, ok)
}

func TestResolverInsertPriority(t *testing.T) {
	r := NewResolver(nil, NewMapLocator(map[string]string{"home": "low"}))
	r.Insert(0, NewMapLocator(map[string]string{"home": "high"}))
	r.Insert(99, NewMapLocator(map[string]string{"home": "lowest"}))
	r.Insert(-5, NewMapLocator(map[string]string{"other": "x"}))
	assert.Equal(t, 4, r.Len())

	text, _ := r.Locate(context.Background(), "home")
	assert.Equal(t, "high", text)
}

func TestResolverSkipsEmptyAndFailing(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	failing := Func(func(context.Context, string) (string, bool, error) {
		return "", false, errors.New("disk on fire")
	})
	empty := NewMapLocator(map[string]string{"home": ""})
	good := NewMapLocator(map[string]string{"home": "ok"})

	r := NewResolver(logger, failing, empty)
	r.Add(good)

	text, ok := r.Locate(context.Background(), "home")
	require.True(t, ok)
	assert.Equal(t, "ok", text)
	assert.Contains(t, buf.String(), "disk on fire")
}

func TestResolverCancelled(t *testing.T) {
	r := NewResolver(nil, NewMapLocator(map[string]string{"home": "x"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := r.Locate(ctx, "home")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"home", "home"},
		{"home.html", "home"},
		{"./layouts/main.html", "layouts/main"},
		{"/partials//nav", "partials/nav"},
		{`partials\nav.html`, "partials/nav"},
		{"../../etc/passwd", "etc/passwd"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, ".html"))
		})
	}
}

func TestFSLocator(t *testing.T) {
	fsys := fstest.MapFS{
		"home.html":         {Data: []byte("<h1>home</h1>")},
		"layouts/main.html": {Data: []byte("<body></body>")},
		"notes.txt":         {Data: []byte("skip")},
		".hidden/x.html":    {Data: []byte("skip")},
	}
	l := NewFSLocator(fsys, "")

	text, ok, err := l.FindView(context.Background(), "home")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<h1>home</h1>", text)

	text, ok, err = l.FindView(context.Background(), "layouts/main.html")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<body></body>", text)

	_, ok, err = l.FindView(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = l.FindView(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "layouts/main"}, names)
}

func TestDirLocatorIdentify(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "partials"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "partials", "nav.html"), []byte("nav"), 0o644))

	l := NewDirLocator(root, ".html")
	text, ok, err := l.FindView(context.Background(), "partials/nav")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "nav", text)

	id, ok := l.Identify(filepath.Join(root, "partials", "nav.html"))
	require.True(t, ok)
	assert.Equal(t, "partials/nav", id)

	_, ok = l.Identify(filepath.Join(root, "partials", "nav.css"))
	assert.False(t, ok)
	_, ok = l.Identify(filepath.Join(filepath.Dir(root), "elsewhere.html"))
	assert.False(t, ok)
}

func TestMapLocator(t *testing.T) {
	m := NewMapLocator(nil)
	m.Set("b", "2")
	m.Set("a", "1")
	assert.Equal(t, []string{"a", "b"}, m.Names())

	m.Delete("a")
	_, ok, err := m.FindView(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLLocator(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "views.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLLocator(db)
	require.NoError(t, s.SetupSchema(ctx))
	require.NoError(t, s.SetupSchema(ctx))

	_, ok, err := s.FindView(ctx, "home")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "home", "v1"))
	require.NoError(t, s.Put(ctx, "home", "v2"))
	require.NoError(t, s.Put(ctx, "about", "about us"))

	text, ok, err := s.FindView(ctx, "home")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", text)

	views, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "about", views[0].Name)
	assert.Equal(t, len("about us"), views[0].Size)
	assert.Equal(t, "home", views[1].Name)

	removed, err := s.Delete(ctx, "home")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Delete(ctx, "home")
	require.NoError(t, err)
	assert.False(t, removed)
}
