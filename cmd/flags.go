package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ModelFlags describe the model a view is rendered with.
type ModelFlags struct {
	File string
	Set  []string
}

// AddModelFlags adds --model and --set to a command.
func AddModelFlags(cmd *cobra.Command) *ModelFlags {
	flags := &ModelFlags{}
	cmd.Flags().StringVarP(&flags.File, "model", "m", "", "Model file (YAML or JSON, - for stdin)")
	cmd.Flags().StringArrayVar(&flags.Set, "set", nil, "Model value as key=value (repeatable)")
	return flags
}

// ParseModel reads the model file, if any, then applies --set values on top.
func (f *ModelFlags) ParseModel(stdin io.Reader) (map[string]interface{}, error) {
	model := make(map[string]interface{})

	if f.File != "" {
		var data []byte
		var err error
		if f.File == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.File)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model file %s: %w", f.File, err)
		}
		// JSON is valid YAML
		if err := yaml.Unmarshal(data, &model); err != nil {
			return nil, fmt.Errorf("invalid model file %s: %w", f.File, err)
		}
		if model == nil {
			model = make(map[string]interface{})
		}
	}

	for _, kv := range f.Set {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		model[key] = value
	}

	return model, nil
}

// OutputFormat is a validated --output flag value.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

var _ pflag.Value = (*OutputFormat)(nil)

func (o *OutputFormat) String() string { return string(*o) }

func (o *OutputFormat) Set(val string) error {
	switch OutputFormat(val) {
	case FormatTable, FormatJSON, FormatYAML:
		*o = OutputFormat(val)
		return nil
	}
	return fmt.Errorf("invalid output format %s, must be one of: table, json, yaml", val)
}

func (o *OutputFormat) Type() string { return "format" }

// AddOutputFlag adds --output/-o to a command.
func AddOutputFlag(cmd *cobra.Command) *OutputFormat {
	format := FormatTable
	cmd.Flags().VarP(&format, "output", "o", "Output format (table|json|yaml)")
	return &format
}

// encode writes v as JSON or YAML. Table output is left to the caller.
func encode(w io.Writer, format OutputFormat, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported format: %s", format)
}

// bindFlag binds a flag to a configuration key when the flag exists.
func bindFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		_ = viper.BindPFlag(key, flag)
	}
}
