package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tmplview/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "./views", cfg.Views.Root)
	assert.Equal(t, ".html", cfg.Views.Extension)
	assert.True(t, cfg.Views.Cache)
	assert.Equal(t, 32, cfg.Views.MaxDepth)
	assert.Equal(t, "USD", cfg.Views.Currency)
	assert.Equal(t, "localhost:8080", cfg.Address())
	assert.True(t, cfg.Development.HotReload)
	assert.True(t, cfg.Development.Diagnostics)
	assert.False(t, cfg.Production())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "custom server",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 3000)
				v.Set("server.host", "0.0.0.0")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0:3000", cfg.Address())
			},
		},
		{
			name: "extension without dot",
			setup: func(v *viper.Viper) {
				v.Set("views.extension", "tmpl")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ".tmpl", cfg.Views.Extension)
			},
		},
		{
			name: "production disables development features",
			setup: func(v *viper.Viper) {
				v.Set("server.environment", "Production")
				v.Set("development.hot_reload", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Production())
				assert.False(t, cfg.Development.HotReload)
				assert.False(t, cfg.Development.Diagnostics)
			},
		},
		{
			name: "invalid port type",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "pretty and minify",
			setup: func(v *viper.Viper) {
				v.Set("output.pretty", true)
				v.Set("output.minify", true)
			},
			expectError: true,
		},
		{
			name: "zero max depth",
			setup: func(v *viper.Viper) {
				v.Set("views.max_depth", 0)
			},
			expectError: true,
		},
		{
			name: "unknown environment",
			setup: func(v *viper.Viper) {
				v.Set("server.environment", "staging")
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(v *viper.Viper) {
				v.Set("log.format", "xml")
			},
			expectError: true,
		},
		{
			name: "dangerous root",
			setup: func(v *viper.Viper) {
				v.Set("views.root", "views; rm -rf /")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, cfg)
				assert.True(t, errors.Is(err, errors.ErrConfig))
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	raw := map[string]any{
		"views": map[string]any{
			"root":        "./templates",
			"persist_dir": ".tmplview/generated",
			"max_depth":   8,
		},
		"output": map[string]any{"minify": true},
		"store":  map[string]any{"dsn": "file:views.db"},
	}
	data, err := yaml.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), ".tmplview.yml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "./templates", cfg.Views.Root)
	assert.Equal(t, ".tmplview/generated", cfg.Views.PersistDir)
	assert.Equal(t, 8, cfg.Views.MaxDepth)
	assert.True(t, cfg.Output.Minify)
	assert.Equal(t, "file:views.db", cfg.Store.DSN)
	assert.Equal(t, ".html", cfg.Views.Extension)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TMPLVIEW_SERVER_PORT", "9090")
	t.Setenv("TMPLVIEW_VIEWS_CACHE", "false")
	t.Setenv("TMPLVIEW_LOG_LEVEL", "DEBUG")

	v := viper.New()
	BindEnvironment(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Views.Cache)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestGlobalLoad(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("server.port", 4000)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"./views", false},
		{"../shared/views", false},
		{"/srv/views", false},
		{"", true},
		{"views|cat", true},
		{"$(whoami)", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
