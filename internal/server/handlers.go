package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/tmplview/internal/adapters"
	"github.com/conneroisu/tmplview/internal/errors"
	"github.com/conneroisu/tmplview/internal/version"
)

// DefaultView is rendered for the root path.
const DefaultView = "index"

const reloadScript = `<script>(function(){` +
	`var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/ws");` +
	`ws.onmessage=function(e){var m=JSON.parse(e.data);if(m.type==="reload"){location.reload();}};` +
	`})();</script>`

// reloadRenderer injects the live reload client into rendered pages.
type reloadRenderer struct {
	adapters.Renderer
}

func (r reloadRenderer) Render(ctx context.Context, name string, model any) (string, error) {
	out, err := r.Renderer.Render(ctx, name, model)
	if err != nil {
		return "", err
	}
	return injectReloadScript(out), nil
}

func injectReloadScript(page string) string {
	if i := strings.LastIndex(strings.ToLower(page), "</body>"); i >= 0 {
		return page[:i] + reloadScript + page[i:]
	}
	return page
}

// handleView renders the view named by the path with the query string as
// its model.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(r.PathValue("view"), "/")
	if name == "" {
		name = DefaultView
	}

	var renderer adapters.Renderer = s.engine
	if s.config.Development.HotReload {
		renderer = reloadRenderer{renderer}
	}

	component := adapters.ViewComponent(renderer, name, queryModel(r.URL.Query()))
	templ.Handler(component, templ.WithErrorHandler(s.renderError)).ServeHTTP(w, r)
}

// queryModel turns query parameters into a model. Repeated keys become
// lists.
func queryModel(values url.Values) map[string]any {
	model := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 1 {
			model[key] = vals[0]
		} else {
			model[key] = vals
		}
	}
	return model
}

func (s *Server) renderError(r *http.Request, err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrViewNotFound) {
			status = http.StatusNotFound
		}
		s.logger.Warn(r.Context(), err, "render failed", "path", r.URL.Path, "status", status)

		production := !s.config.Development.Diagnostics
		var body string
		if production {
			body = "<p>" + html.EscapeString(errors.Diagnostic(err, true)) + "</p>"
		} else {
			body = errors.Fragment(err, false)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%d %s</title></head><body>%s</body></html>\n",
			status, http.StatusText(status), body)
	})
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"clients":   s.hub.Clients(),
	}
	s.writeJSON(w, r, health)
}

// handleStats returns engine and cache counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()
	response := map[string]interface{}{
		"engine":    stats,
		"hit_rate":  stats.Cache.HitRate(),
		"timestamp": time.Now().Unix(),
	}
	s.writeJSON(w, r, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode response")
	}
}
