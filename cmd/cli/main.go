package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/de-tools/case-atlas/pkg/runtime/terminal"
	"github.com/de-tools/case-atlas/pkg/services/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := terminal.NewCLI(terminal.Options{
		Registry: report.NewDefaultRegistry(),
		Output:   os.Stdout,
	})

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
