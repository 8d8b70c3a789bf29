package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tracestat/internal/arch"
	"tracestat/internal/breakdown"
	"tracestat/internal/config"
	"tracestat/internal/pipeline"
	"tracestat/internal/tracestat/log"
	"tracestat/internal/tracestat/styles"
)

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	addRunFlags(rootCmd.Flags())
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.BoolP("byte-hist", "b", false, "Include per-mnemonic encoded length histograms")
	fs.Uint64("report-every", pipeline.DefaultReportEvery, "Print a progress report every N instructions (0 disables)")
	fs.Int("cache-size", pipeline.DefaultCacheSize, "Decoded blocks kept in the block cache (0 disables)")
	fs.IntP("jobs", "j", 1, "Trace files processed concurrently")
	fs.StringP("format", "f", config.FormatText, "Report format: text, json or summary")
	fs.Int("top", 10, "Mnemonics listed per category in the summary format")
	fs.Bool("flush-on-error", false, "Write the partial report to stderr when a run fails")
	fs.Bool("no-color", false, "Disable colored output")
}

var rootCmd = &cobra.Command{
	Use:   "tracestat <arch> <trace>...",
	Short: "Instruction statistics for binary execution traces",
	Long: `Tracestat decodes instruction-block traces recorded by an instrumented emulator,
classifies every executed instruction and prints per-category and per-mnemonic
breakdowns split between user and kernel context.

The architecture is "x86" for x86-64; any other value selects AArch64.
Several traces are aggregated into a single report.`,
	Example: `
# Breakdown of an AArch64 trace
tracestat arm boot.trace

# Two x86-64 traces, two at a time, with length histograms
tracestat -j 2 -b x86 a.trace.xz b.trace.gz

# Markdown summary
tracestat -f summary arm boot.trace
  `,
	Args:          cobra.MinimumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log.Setup(cfg.Debug)
		return runStats(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, arch.Parse(args[0]), args[1:])
	},
}

// loadConfig reads the environment and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("byte-hist") {
		cfg.ByteHistogram, _ = flags.GetBool("byte-hist")
	}
	if flags.Changed("report-every") {
		cfg.ReportEvery, _ = flags.GetUint64("report-every")
	}
	if flags.Changed("cache-size") {
		cfg.CacheSize, _ = flags.GetInt("cache-size")
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("top") {
		cfg.Top, _ = flags.GetInt("top")
	}
	if flags.Changed("flush-on-error") {
		cfg.FlushOnError, _ = flags.GetBool("flush-on-error")
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runStats(ctx context.Context, out, errOut io.Writer, cfg config.Config, a arch.Arch, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := pipeline.Options{
		Arch:          a,
		ReportEvery:   cfg.ReportEvery,
		Progress:      errOut,
		ByteHistogram: cfg.ByteHistogram,
		CacheSize:     cfg.CacheSize,
		Logger:        slog.Default(),
	}

	table, stats, err := pipeline.RunAll(ctx, paths, cfg.Jobs, opts)
	if err != nil {
		slog.Error("run failed", "err", err, "stats", stats.String())
		if cfg.FlushOnError {
			fmt.Fprintln(errOut, "=== partial report, not authoritative ===")
			_ = table.Report(errOut, cfg.ByteHistogram)
		}
		return err
	}
	slog.Info("run complete", "traces", len(paths), "stats", stats.String())
	return writeReport(out, table, stats, cfg)
}

func writeReport(w io.Writer, table *breakdown.Table, stats pipeline.Stats, cfg config.Config) error {
	switch cfg.Format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(struct {
			Stats pipeline.Stats   `json:"stats"`
			Table *breakdown.Table `json:"breakdown"`
		}{stats, table}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case config.FormatSummary:
		md := breakdown.Summary(table, cfg.Top)
		if cfg.NoColor || !isTerminal(w) {
			_, err := io.WriteString(w, md)
			return err
		}
		width := 100
		if f, ok := w.(*os.File); ok {
			if tw, _, err := term.GetSize(f.Fd()); err == nil && tw > 0 {
				width = tw
			}
		}
		r, err := styles.GetMarkdownRenderer(width)
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		rendered, err := r.Render(md)
		if err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
		_, err = io.WriteString(w, rendered)
		return err

	default:
		return table.Report(w, cfg.ByteHistogram)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func Execute() {
	defer log.Close()

	// Bypass fang when output is being piped
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
