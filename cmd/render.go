package cmd

import (
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var (
	renderModel  *ModelFlags
	renderOutput string
	renderDeps   bool
)

var renderCmd = &cobra.Command{
	Use:     "render <view>",
	Aliases: []string{"r"},
	Short:   "Render a view to stdout or a file",
	Long: `Render a view through its layouts, sections and partials.

Examples:
  tmplview render home --model home.yml
  tmplview render emails/welcome --set name=Ada -w out/welcome.html
  echo '{"name":"Ada"}' | tmplview render home --model -`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderModel = AddModelFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "write", "w", "", "Write the result to a file instead of stdout")
	renderCmd.Flags().BoolVar(&renderDeps, "deps", false, "Print the views the result depends on to stderr")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	model, err := renderModel.ParseModel(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.RenderResult(ctx, args[0], model)
	if err != nil {
		return err
	}

	if renderDeps {
		fmt.Fprintln(cmd.ErrOrStderr(), "depends on:", strings.Join(res.Dependencies, ", "))
	}

	if renderOutput != "" {
		if err := atomic.WriteFile(renderOutput, strings.NewReader(res.HTML)); err != nil {
			return fmt.Errorf("failed to write %s: %w", renderOutput, err)
		}
		return nil
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), res.HTML)
	return err
}
