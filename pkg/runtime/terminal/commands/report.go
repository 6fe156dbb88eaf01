package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de-tools/case-atlas/pkg/models/domain"
	"github.com/de-tools/case-atlas/pkg/records"
	"github.com/de-tools/case-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/case-atlas/pkg/services/config"
	"github.com/de-tools/case-atlas/pkg/services/report"
	"github.com/de-tools/case-atlas/pkg/store/tabular"
)

// Printer writes a document to the console.
type Printer interface {
	Handle(doc *domain.Document) error
}

type ReportCmd struct {
	registry report.Registry
	printer  Printer
}

// NewReportCmd creates the command that turns an input file into a report.
func NewReportCmd(registry report.Registry, printer Printer) *cobra.Command {
	rc := &ReportCmd{registry: registry, printer: printer}
	cmd := &cobra.Command{
		Use:           "case-atlas <input-file>",
		Short:         "Build the case analysis report from a .csv or .xlsx file",
		Args:          InputFile,
		RunE:          rc.run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a report plan (YAML); the built-in plan is used when empty")
	cmd.PersistentFlags().String("columns", "", "Path to an ini file with column name profiles")
	cmd.PersistentFlags().String("profile", "", "Column profile to use from --columns")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentPreRunE = setupLogger

	cmd.Flags().String("out", ".", "Directory for the report and chart files")
	cmd.Flags().String("format", config.FormatMarkdown, "Output format: markdown, yaml or text")
	cmd.Flags().String("font", "", "TrueType font for chart labels")
	cmd.Flags().Int("parallel", 1, "Number of sections built concurrently")
	cmd.Flags().Bool("continue-on-error", false, "Keep building after a section fails")

	return cmd
}

// InputFile requires exactly one argument naming an existing file.
func InputFile(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("please provide the path of the case file, e.g. case-atlas cases.xlsx")
	}
	if len(args) > 1 {
		return fmt.Errorf("expected one input file, got %d arguments", len(args))
	}
	info, err := os.Stat(args[0])
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file %s does not exist, please check the path", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to access %s: %w", args[0], err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a case file", args[0])
	}
	return nil
}

func setupLogger(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	if env := os.Getenv(config.EnvPrefix + "_LOG_LEVEL"); env != "" && !cmd.Flags().Changed("log-level") {
		level = env
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		With().Timestamp().Logger().Level(lvl)
	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}

func (rc *ReportCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := zerolog.Ctx(ctx)

	settings, err := config.LoadSettings(cmd.Flags())
	if err != nil {
		return err
	}

	plan, err := loadPlan(ctx, settings.Plan, settings.Columns, settings.Profile)
	if err != nil {
		return err
	}

	rs, err := tabular.Load(ctx, args[0], records.Schema{})
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	logger.Info().Str("input", args[0]).Int("rows", rs.Size()).Msg("cases loaded")

	opts := []report.Option{report.WithParallelism(settings.Parallel)}
	if settings.ContinueOnError {
		opts = append(opts, report.WithContinueOnError())
	}
	doc, buildErr := report.NewBuilder(rc.registry, opts...).Build(ctx, rs, *plan)
	if doc == nil {
		return fmt.Errorf("failed to build report: %w", buildErr)
	}
	if buildErr != nil {
		logger.Warn().Err(buildErr).Msg("report is incomplete")
	}

	out := cmd.OutOrStdout()
	switch settings.Format {
	case config.FormatText:
		if err := rc.printer.Handle(doc); err != nil {
			return fmt.Errorf("failed to print report: %w", err)
		}
	case config.FormatYAML:
		path, err := writeYAML(settings.OutDir, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	default:
		charts, err := export.NewChartRenderer(settings.Font)
		if err != nil {
			return err
		}
		path, err := export.NewReporter(settings.OutDir, charts).Handle(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(out, "Report written to %s\n", path)
	}

	if len(doc.Omitted) > 0 {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "%d of %d sections were omitted:\n", len(doc.Omitted), len(plan.Sections))
		for _, o := range doc.Omitted {
			fmt.Fprintf(errOut, "  - %s: %s\n", o.ID, o.Reason)
		}
	}
	return nil
}

func writeYAML(dir string, doc *domain.Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, "document.yaml")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := export.WriteYAML(f, doc); err != nil {
		return "", err
	}
	return path, f.Close()
}

// loadPlan reads the report plan and overlays the selected column profile.
func loadPlan(ctx context.Context, planPath, columnsPath, profile string) (*report.Plan, error) {
	plan, err := config.LoadPlan(planPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load report plan: %w", err)
	}
	if columnsPath == "" {
		return plan, nil
	}

	profiles, err := config.NewColumnProfiles(columnsPath)
	if err != nil {
		return nil, err
	}
	columns, err := profiles.GetColumns(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to load column profile: %w", err)
	}
	plan.Columns = report.Columns(plan.Columns).Merge(columns)
	zerolog.Ctx(ctx).Debug().Str("profile", profile).Int("columns", len(columns)).Msg("column profile applied")
	return plan, nil
}
