package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/de-tools/case-atlas/pkg/services/report"
)

type SectionsCmd struct {
	registry report.Registry
}

func NewSectionsCmd(registry report.Registry) *cobra.Command {
	sc := &SectionsCmd{registry: registry}
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List the sections of the report plan",
		Args:  cobra.NoArgs,
		RunE:  sc.run,
	}
	return cmd
}

func (sc *SectionsCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	planPath, _ := cmd.Flags().GetString("config")
	columnsPath, _ := cmd.Flags().GetString("columns")
	profile, _ := cmd.Flags().GetString("profile")

	plan, err := loadPlan(ctx, planPath, columnsPath, profile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", plan.Title)
	for i, s := range plan.Sections {
		fmt.Fprintf(out, "%3d  %-20s %-11s %s\n", i+1, s.Key(i), s.Kind, s.Heading)
	}
	fmt.Fprintf(out, "Section kinds: %s\n", strings.Join(sc.registry.ListKinds(), ", "))
	return nil
}
