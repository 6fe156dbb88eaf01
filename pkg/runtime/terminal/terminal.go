package terminal

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/de-tools/case-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/case-atlas/pkg/services/report"
)

// CLI represents the command-line interface
type CLI struct {
	registry report.Registry
	reporter *Reporter
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Registry report.Registry
	Output   io.Writer
	Errors   io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Errors == nil {
		opts.Errors = os.Stderr
	}
	if opts.Registry == nil {
		opts.Registry = report.NewDefaultRegistry()
	}

	cli := &CLI{
		registry: opts.Registry,
		reporter: NewReporter(opts.Output),
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	cli.rootCmd.SetErr(opts.Errors)
	return cli
}

// SetArgs overrides the command-line arguments, mostly for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := commands.NewReportCmd(cli.registry, cli.reporter)
	cmd.AddCommand(commands.NewSectionsCmd(cli.registry))
	return cmd
}
