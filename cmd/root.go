// Package cmd provides the tmplview command-line interface.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--config, --port, etc.)
//  2. TMPLVIEW_CONFIG_FILE environment variable, a custom config file path
//  3. Individual environment variables (TMPLVIEW_SERVER_PORT, etc.)
//  4. The .tmplview.yml file in the current directory
//
// Environment variables follow the TMPLVIEW_<SECTION>_<OPTION> pattern, for
// example TMPLVIEW_VIEWS_ROOT or TMPLVIEW_DEVELOPMENT_HOT_RELOAD.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tmplview/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tmplview",
	Short: "Server-side HTML views with layouts, sections and partials",
	Long: `tmplview renders HTML views written with embedded <% code %> markers.
Views compose through layouts, named sections and partials, and compiled
views are cached until a view they depend on changes.

Quick Start:
  tmplview serve                     Serve views with live reload
  tmplview render home --model m.yml Render one view to stdout
  tmplview compile --persist         Precompile every view
  tmplview store put home home.html  Store a view in the SQL store`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tmplview.yml, can also use TMPLVIEW_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("views", "", "views root directory (overrides views.root)")
}

// initConfig points viper at the config file and environment.
//
//	export TMPLVIEW_CONFIG_FILE=./configs/dev.yml
//	tmplview serve --config prod.yml  # uses prod.yml, the flag wins
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TMPLVIEW_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tmplview")
	}

	config.BindEnvironment(viper.GetViper())
	bindFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("views.root", rootCmd.PersistentFlags().Lookup("views"))

	// a missing or unreadable file falls back to defaults
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
