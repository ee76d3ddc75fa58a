package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tonimelisma/forgepush/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags, bound in newRootCmd().
var (
	flagConfigPath  string
	flagVerbose     bool
	flagQuiet       bool
	flagRepo        string
	flagDescription string
	flagPrivate     bool
	flagDir         string
	flagDryRun      bool
	flagStrict      bool
	flagReport      string
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Resolved

// skipConfigCommands lists commands that must work without a loadable
// configuration.
var skipConfigCommands = map[string]bool{
	"forgepush config init": true,
}

// logFileMaxSizeMB is the size at which the log file is rotated.
const logFileMaxSizeMB = 10

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgepush",
		Short: "Publish a directory to a GitHub repository",
		Long: "Creates the target repository if needed and uploads every file under the\n" +
			"upload root, one commit per file. Run with no arguments to publish the\n" +
			"current directory.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
		RunE: runPush,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only print failures and the summary")

	cmd.Flags().StringVar(&flagRepo, "repo", "", "repository as name or owner/name (default: root directory name)")
	cmd.Flags().StringVar(&flagDescription, "description", "", "description for a newly created repository")
	cmd.Flags().BoolVar(&flagPrivate, "private", false, "create the repository as private")
	cmd.Flags().StringVar(&flagDir, "dir", "", "directory to upload (default: current directory)")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "list the files that would be uploaded without contacting the network")
	cmd.Flags().BoolVar(&flagStrict, "strict", false, "exit with an error if any file failed to upload")
	cmd.Flags().StringVar(&flagReport, "report", "", "write a JSON run report to this path")

	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only flags the user explicitly set override lower layers.
	flags := cmd.Flags()

	if flags.Changed("repo") {
		cli.Repository = &flagRepo
	}

	if flags.Changed("description") {
		cli.Description = &flagDescription
	}

	if flags.Changed("private") {
		cli.Private = &flagPrivate
	}

	if flags.Changed("dir") {
		cli.RootDir = &flagDir
	}

	if flags.Changed("report") {
		cli.ReportFile = &flagReport
	}

	if flags.Changed("dry-run") {
		cli.DryRun = &flagDryRun
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it. When log_file is set, output goes to a rotating file
// and the returned closer must be closed when the run ends.
func buildLogger(r *config.Resolved, stderr io.Writer) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo

	if r != nil {
		switch r.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	var (
		w      = stderr
		closer io.Closer
		format = "auto"
	)

	if r != nil {
		format = r.LogFormat

		if r.LogFile != "" {
			lj := &lumberjack.Logger{
				Filename: r.LogFile,
				MaxSize:  logFileMaxSizeMB,
				MaxAge:   r.LogRetentionDays,
			}
			w, closer = lj, lj
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if useJSONLogs(format, w) {
		return slog.New(slog.NewJSONHandler(w, opts)), closer
	}

	return slog.New(slog.NewTextHandler(w, opts)), closer
}

// useJSONLogs reports whether log_format selects JSON for w. "auto" means
// text on a terminal and JSON everywhere else.
func useJSONLogs(format string, w io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return true
	}

	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
