package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tmplview/internal/config"
	"github.com/conneroisu/tmplview/internal/errors"
	"github.com/conneroisu/tmplview/internal/locator"
	"github.com/conneroisu/tmplview/internal/store"
)

var storeFormat *OutputFormat

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage views kept in the SQL view store",
	Long: `Manage views kept in the SQL view store configured by store.dsn.
Stored views take precedence over files with the same name.

Examples:
  tmplview store put home views/home.html
  tmplview store list -o json
  tmplview store delete home`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		bindFlag("store.dsn", cmd.Flag("dsn"))
	},
}

var storePutCmd = &cobra.Command{
	Use:   "put <name> <file>",
	Short: "Store a view from a file (- for stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var body []byte
		var err error
		if args[1] == "-" {
			body, err = io.ReadAll(cmd.InOrStdin())
		} else {
			body, err = os.ReadFile(args[1])
		}
		if err != nil {
			return errors.WrapIO(err, "STORE_READ", "failed to read "+args[1])
		}

		return withStore(cmd, func(ctx context.Context, views *locator.SQLLocator, ext string) error {
			name := locator.Normalize(args[0], ext)
			if err := views.Put(ctx, name, string(body)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes)\n", name, len(body))
			return nil
		})
	},
}

var storeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, views *locator.SQLLocator, _ string) error {
			list, err := views.List(ctx)
			if err != nil {
				return err
			}
			if *storeFormat != FormatTable {
				if list == nil {
					list = []locator.StoredView{}
				}
				return encode(cmd.OutOrStdout(), *storeFormat, list)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tUPDATED")
			for _, v := range list {
				fmt.Fprintf(w, "%s\t%d\t%s\n", v.Name, v.Size, v.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a stored view",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, views *locator.SQLLocator, ext string) error {
			name := locator.Normalize(args[0], ext)
			removed, err := views.Delete(ctx, name)
			if err != nil {
				return err
			}
			if !removed {
				return errors.NewViewNotFoundError(name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storePutCmd, storeListCmd, storeDeleteCmd)

	storeCmd.PersistentFlags().String("dsn", "", "SQL store DSN (overrides store.dsn)")
	storeFormat = AddOutputFlag(storeListCmd)
}

// withStore opens the configured store, ensures its schema and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, views *locator.SQLLocator, ext string) error) error {
	ctx := contextOf(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store.DSN == "" {
		return errors.NewConfigError("STORE_DSN", "no view store configured, set store.dsn or --dsn")
	}

	db, err := store.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	views := locator.NewSQLLocator(db)
	if err := views.SetupSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, views, cfg.Views.Extension)
}
