package adapters

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tmplview/internal/watcher"
)

type fakeRenderer struct {
	out string
	err error
}

func (f fakeRenderer) Render(_ context.Context, name string, model any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out + ":" + name, nil
}

type fakeInvalidator struct {
	calls []string
}

func (f *fakeInvalidator) NotifyChanged(name string) []string {
	f.calls = append(f.calls, name)
	return []string{name, "layout-of-" + name}
}

func TestViewComponent(t *testing.T) {
	var buf bytes.Buffer
	err := ViewComponent(fakeRenderer{out: "<p>hi</p>"}, "home", nil).Render(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>:home", buf.String())
}

func TestViewComponentError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	err := ViewComponent(fakeRenderer{err: boom}, "home", nil).Render(context.Background(), &buf)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, buf.Len())
}

func TestInvalidationHandler(t *testing.T) {
	inv := &fakeInvalidator{}
	identify := func(path string) (string, bool) {
		if !strings.HasSuffix(path, ".html") {
			return "", false
		}
		return strings.TrimSuffix(path, ".html"), true
	}

	var gotChanged, gotRemoved []string
	handler := InvalidationHandler(inv, identify, func(changed, removed []string) {
		gotChanged, gotRemoved = changed, removed
	})

	err := handler([]watcher.ChangeEvent{
		{Path: "home.html"},
		{Path: "style.css"},
		{Path: "home.html"},
		{Path: "layout.html"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"home", "layout"}, inv.calls)
	assert.Equal(t, []string{"home", "layout"}, gotChanged)
	assert.Len(t, gotRemoved, 4)
}

func TestInvalidationHandlerNoViews(t *testing.T) {
	inv := &fakeInvalidator{}
	called := false
	handler := InvalidationHandler(inv, func(string) (string, bool) { return "", false }, func(_, _ []string) {
		called = true
	})

	require.NoError(t, handler([]watcher.ChangeEvent{{Path: "a.txt"}}))
	assert.False(t, called)
	assert.Empty(t, inv.calls)
}
