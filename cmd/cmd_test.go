package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tmplview/internal/locator"
	"github.com/conneroisu/tmplview/internal/version"
)

type project struct {
	dir    string
	views  string
	config string
}

// newProject writes views and a config file pointing at them.
func newProject(t *testing.T, views map[string]string, extra map[string]any) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{dir: dir, views: filepath.Join(dir, "views"), config: filepath.Join(dir, ".tmplview.yml")}

	for name, body := range views {
		path := filepath.Join(p.views, filepath.FromSlash(name)+".html")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfg := map[string]any{
		"views": map[string]any{"root": p.views},
		"log":   map[string]any{"level": "error"},
	}
	for k, v := range extra {
		cfg[k] = v
	}
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.config, data, 0o644))
	return p
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	compilePersist = false
	renderModel.File, renderModel.Set = "", nil
	renderOutput, renderDeps = "", false
	*storeFormat = FormatTable
	versionFormat, versionShort = "text", false
	require.NoError(t, compileCmd.Flags().Set("dir", ""))
	require.NoError(t, storeCmd.PersistentFlags().Set("dsn", ""))

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

var siteViews = map[string]string{
	"layout": `<html><title><%= renderSection("title", "Site") %></title><body><%= renderBody() %></body></html>`,
	"home":   `<% layout "layout" %><% section "title" %>Home<% end %><p>Hi <%= model.name %></p>`,
	"about":  `<% layout "layout" %><p>About</p>`,
}

func TestRenderCommand(t *testing.T) {
	p := newProject(t, siteViews, nil)

	out, stderr, err := execute(t, "", "render", "home", "--set", "name=Ada", "--deps", "--config", p.config)
	require.NoError(t, err)
	assert.Equal(t, "<html><title>Home</title><body><p>Hi Ada</p></body></html>", out)
	assert.Contains(t, stderr, "depends on: home, layout")
}

func TestRenderCommandModelFromStdin(t *testing.T) {
	p := newProject(t, siteViews, nil)

	out, _, err := execute(t, `{"name": "Grace"}`, "render", "home", "--model", "-", "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Hi Grace")
}

func TestRenderCommandWritesFile(t *testing.T) {
	p := newProject(t, siteViews, map[string]any{"output": map[string]any{"minify": true}})
	target := filepath.Join(p.dir, "out.html")

	out, _, err := execute(t, "", "render", "about", "-w", target, "--config", p.config)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<html><title>Site</title><body><p>About</p></body></html>", string(data))
}

func TestRenderCommandMissingView(t *testing.T) {
	p := newProject(t, siteViews, nil)

	_, _, err := execute(t, "", "render", "nowhere", "--config", p.config)
	assert.Error(t, err)
}

func TestCompileCommandPrintsCode(t *testing.T) {
	p := newProject(t, siteViews, nil)

	out, _, err := execute(t, "", "compile", "about", "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, `{{ layout "layout" }}`)
	assert.Contains(t, out, "<p>About</p>")
}

func TestCompileCommandPersist(t *testing.T) {
	p := newProject(t, siteViews, nil)
	dir := filepath.Join(p.dir, "generated")

	out, _, err := execute(t, "", "compile", "--persist", "--dir", dir, "--config", p.config)
	require.NoError(t, err)
	for _, name := range []string{"about", "home", "layout"} {
		assert.Contains(t, out, "✓ "+name)
		assert.FileExists(t, filepath.Join(dir, name+".tmpl"))
	}
}

func TestCompileCommandPersistNeedsDir(t *testing.T) {
	p := newProject(t, siteViews, nil)

	_, _, err := execute(t, "", "compile", "--persist", "--config", p.config)
	assert.Error(t, err)
}

func TestStoreCommands(t *testing.T) {
	p := newProject(t, siteViews, nil)
	dsn := filepath.Join(p.dir, "views.db")

	override := filepath.Join(p.dir, "about-db.html")
	require.NoError(t, os.WriteFile(override, []byte(`<% layout "layout" %><p>From the store</p>`), 0o644))

	out, _, err := execute(t, "", "store", "put", "about", override, "--dsn", dsn, "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "stored about")

	out, _, err = execute(t, "", "store", "list", "-o", "json", "--dsn", dsn, "--config", p.config)
	require.NoError(t, err)
	var listed []locator.StoredView
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "about", listed[0].Name)

	out, _, err = execute(t, "", "store", "list", "--dsn", dsn, "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "about")

	// stored views take precedence over files
	t.Setenv("TMPLVIEW_STORE_DSN", dsn)
	out, _, err = execute(t, "", "render", "about", "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "From the store")

	out, _, err = execute(t, "", "store", "delete", "about", "--dsn", dsn, "--config", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted about")

	_, _, err = execute(t, "", "store", "delete", "about", "--dsn", dsn, "--config", p.config)
	assert.Error(t, err)
}

func TestStoreRequiresDSN(t *testing.T) {
	p := newProject(t, siteViews, nil)

	_, _, err := execute(t, "", "store", "list", "--config", p.config)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.GetShortVersion()+"\n", out)

	out, _, err = execute(t, "", "version", "-o", "json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info.GoVersion)

	_, _, err = execute(t, "", "version", "-o", "xml")
	assert.Error(t, err)
}

func TestParseModel(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "m.yml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("name: Ada\ntags:\n  - a\n  - b\n"), 0o644))
	jsonFile := filepath.Join(dir, "m.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"name": "Bob", "age": 3}`), 0o644))

	tests := []struct {
		name    string
		flags   ModelFlags
		stdin   string
		want    map[string]interface{}
		wantErr bool
	}{
		{name: "empty", want: map[string]interface{}{}},
		{name: "yaml", flags: ModelFlags{File: yamlFile}, want: map[string]interface{}{"name": "Ada", "tags": []interface{}{"a", "b"}}},
		{name: "json", flags: ModelFlags{File: jsonFile}, want: map[string]interface{}{"name": "Bob", "age": 3}},
		{name: "stdin", flags: ModelFlags{File: "-"}, stdin: "name: Cy", want: map[string]interface{}{"name": "Cy"}},
		{name: "set overrides file", flags: ModelFlags{File: jsonFile, Set: []string{"name=Dee", "x=1=2"}},
			want: map[string]interface{}{"name": "Dee", "age": 3, "x": "1=2"}},
		{name: "bad set", flags: ModelFlags{Set: []string{"novalue"}}, wantErr: true},
		{name: "missing file", flags: ModelFlags{File: filepath.Join(dir, "none.yml")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.flags.ParseModel(strings.NewReader(tt.stdin))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputFormat(t *testing.T) {
	var f OutputFormat
	assert.NoError(t, f.Set("json"))
	assert.Equal(t, FormatJSON, f)
	assert.Error(t, f.Set("csv"))
	assert.Equal(t, "format", f.Type())
}
