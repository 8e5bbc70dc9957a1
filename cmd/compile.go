package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tmplview/internal/errors"
)

var compilePersist bool

var compileCmd = &cobra.Command{
	Use:     "compile [view...]",
	Aliases: []string{"c"},
	Short:   "Show generated code or precompile views",
	Long: `Without --persist, print the generated template code for each view.
With --persist, compile each view and everything it references and store
the generated code in the persist directory. With no views given, every
view under the views root is compiled.

Examples:
  tmplview compile home
  tmplview compile --persist
  tmplview compile --persist --dir .tmplview/generated home about`,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlag("views.persist_dir", cmd.Flags().Lookup("dir"))
	},
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().BoolVar(&compilePersist, "persist", false, "Persist generated code")
	compileCmd.Flags().String("dir", "", "Persist directory (overrides views.persist_dir)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names := args
	if len(names) == 0 {
		names, err = a.views.List()
		if err != nil {
			return errors.WrapIO(err, "VIEWS_LIST", "failed to list views")
		}
	}

	if !compilePersist {
		for _, name := range names {
			id := a.engine.Identity(name)
			source, ok, err := a.views.FindView(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewViewNotFoundError(name)
			}
			code, err := a.engine.GenerateCode(source)
			if err != nil {
				return err
			}
			if len(names) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "{{/* %s */}}\n", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
		}
		return nil
	}

	if a.cfg.Views.PersistDir == "" {
		return errors.NewConfigError("PERSIST_DIR", "--persist needs views.persist_dir or --dir")
	}

	failed := 0
	seen := make(map[string]bool)
	for _, name := range names {
		compiled, err := a.engine.Precompile(ctx, name)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", name, err)
			continue
		}
		for _, id := range compiled {
			if !seen[id] {
				seen[id] = true
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", id)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d views failed to compile", failed, len(names))
	}
	return nil
}
