package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"opsunify/internal/config"
	"opsunify/internal/dataprocessing"
	"opsunify/internal/exporter"
	"opsunify/internal/infrastructure"
	"opsunify/internal/validation"
	"opsunify/pkg/contracts"
	"opsunify/pkg/contracts/domain"
)

// options carries the parsed command line.
type options struct {
	Advisors   string
	Operations string
	Dashboard  string
	Variant    domain.Variant
	Output     string
	Format     string
}

func main() {
	advisorsPath := flag.String("advisors", "", "advisors table (.csv or .xlsx) with Conta, Nome, Assessor")
	operationsPath := flag.String("operations", "", "operations table (.csv or .xlsx) with one row per leg")
	dashboardPath := flag.String("dashboard", "", "optional dashboard table (.csv or .xlsx) for the dashboard variants")
	variantName := flag.String("variant", "", "pipeline variant: base, dashboard or saindo_hoje (default resolves from the inputs)")
	outputPath := flag.String("output", config.ResultFileName, "output file path")
	formatName := flag.String("format", "", "output format: xlsx or csv (default follows the output extension)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Optional .env for local development
	_ = godotenv.Load()

	opts, err := buildOptions(*advisorsPath, *operationsPath, *dashboardPath, *variantName, *outputPath, *formatName)
	if err != nil {
		fail(err)
	}

	// One trace ID for the whole run so the log file correlates.
	ctx := infrastructure.EnsureTraceID(context.Background())
	if err := run(ctx, opts); err != nil {
		fail(err)
	}
}

// fail prints the error plainly and exits with code 1, the contract shared
// with schema and processing failures.
func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// buildOptions validates the raw flag values into a runnable option set.
func buildOptions(advisors, operations, dashboard, variantName, output, formatName string) (options, error) {
	if advisors == "" {
		return options{}, fmt.Errorf("-advisors is required")
	}
	if operations == "" {
		return options{}, fmt.Errorf("-operations is required")
	}

	variant, err := domain.ParseVariant(variantName)
	if err != nil {
		return options{}, err
	}
	if variant != "" && variant != domain.VariantBase && dashboard == "" {
		return options{}, fmt.Errorf("variant %s requires -dashboard", variant)
	}

	format, err := resolveFormat(output, formatName)
	if err != nil {
		return options{}, err
	}

	if output == "" {
		output = config.ResultFileName
	}

	return options{
		Advisors:   advisors,
		Operations: operations,
		Dashboard:  dashboard,
		Variant:    variant,
		Output:     output,
		Format:     format,
	}, nil
}

// resolveFormat picks the export format: an explicit -format wins, otherwise
// the output extension decides, defaulting to xlsx.
func resolveFormat(output, formatName string) (string, error) {
	switch strings.ToLower(formatName) {
	case "xlsx", "csv":
		return strings.ToLower(formatName), nil
	case "":
		if strings.EqualFold(filepath.Ext(output), ".csv") {
			return "csv", nil
		}
		return "xlsx", nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: xlsx, csv)", formatName)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	// Keep stdout for the run summary; the structured log goes to a file.
	cfg.Logging.Output = "file"
	if cfg.Logging.FilePath == "" || cfg.Logging.FilePath == "logs/app.log" {
		cfg.Logging.FilePath = cfg.ResolvedPaths().GetLogPath("unify.log")
	}

	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
	}
	defer infrastructure.CloseLogFile()

	logger := infrastructure.LoggerWithContext(ctx)

	logger.Info("Starting unification run",
		slog.String("advisors", opts.Advisors),
		slog.String("operations", opts.Operations),
		slog.String("dashboard", opts.Dashboard),
		slog.String("variant", string(opts.Variant)),
		slog.String("output", opts.Output),
		slog.String("format", opts.Format))

	// Validate the input files before parsing anything.
	fileValidator := validation.NewFileValidator(logger)
	if err := fileValidator.ValidateInputFile(opts.Advisors); err != nil {
		return err
	}
	if err := fileValidator.ValidateInputFile(opts.Operations); err != nil {
		return err
	}
	if opts.Dashboard != "" {
		if err := fileValidator.ValidateInputFile(opts.Dashboard); err != nil {
			return err
		}
	}

	outPath, err := filepath.Abs(opts.Output)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := fileValidator.ValidateOutputDirectory(filepath.Dir(outPath)); err != nil {
		return err
	}

	inputs, err := readInputs(opts, cfg.Pipeline.DelimiterRune())
	if err != nil {
		return err
	}

	// The processor gets the untagged logger; trace_id reaches its records
	// through ctx instead.
	processor := dataprocessing.NewProcessor(infrastructure.GetLogger())
	table, stats, err := processor.Process(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Printf("Parsed %d legs into %d unified operations (variant %s)\n",
		stats.LegsIn, stats.RowsOut, inputs.ResolveVariant())

	result := exporter.NewResultExporter(cfg.ResolvedPaths())
	switch opts.Format {
	case "csv":
		err = result.ExportCSV(outPath, table, cfg.Pipeline.DelimiterRune())
	default:
		err = result.ExportXLSX(outPath, table)
	}
	if err != nil {
		return err
	}

	logger.Info("Unification run complete",
		slog.Int("legs_in", stats.LegsIn),
		slog.Int("rows_out", stats.RowsOut),
		slog.Duration("duration", stats.Duration),
		slog.String("output", outPath))

	fmt.Printf("Result written to %s\n", outPath)
	return nil
}

// readInputs loads the input tables from disk. The dashboard table is only
// read when a path was supplied.
func readInputs(opts options, delimiter rune) (dataprocessing.Inputs, error) {
	readOpts := dataprocessing.ReadOptions{Delimiter: delimiter}

	advisors, err := dataprocessing.ReadTableFile("advisors", opts.Advisors, readOpts)
	if err != nil {
		return dataprocessing.Inputs{}, err
	}

	operations, err := dataprocessing.ReadTableFile("operations", opts.Operations, readOpts)
	if err != nil {
		return dataprocessing.Inputs{}, err
	}

	inputs := dataprocessing.Inputs{
		Advisors:   advisors,
		Operations: operations,
		Variant:    opts.Variant,
	}

	if opts.Dashboard != "" {
		dashboard, err := dataprocessing.ReadTableFile("dashboard", opts.Dashboard, readOpts)
		if err != nil {
			return dataprocessing.Inputs{}, err
		}
		inputs.Dashboard = dashboard
	}

	return inputs, nil
}
