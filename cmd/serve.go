package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tmplview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve views over HTTP with live reload",
	Long: `Serve views over HTTP. GET /<view> renders the view with the query
string as its model. During development, changed view files invalidate the
cache and reload connected browsers.

Examples:
  tmplview serve                     # Serve ./views on localhost:8080
  tmplview serve -p 3000 --views web # Serve ./web on port 3000
  tmplview serve --env production    # Hide diagnostics, no live reload`,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlag("server.port", cmd.Flags().Lookup("port"))
		bindFlag("server.host", cmd.Flags().Lookup("host"))
		bindFlag("server.environment", cmd.Flags().Lookup("env"))
		bindFlag("development.hot_reload", cmd.Flags().Lookup("hot-reload"))
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("env", "development", "Environment (development, production, test)")
	serveCmd.Flags().Bool("hot-reload", true, "Reload browsers when views change")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.cfg, a.engine, a.views, a.logger)
	return srv.Start(ctx)
}

// contextOf returns the command context, or Background before Execute sets one.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
