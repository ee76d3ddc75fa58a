package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/forgepush/internal/config"
	"github.com/tonimelisma/forgepush/internal/connector"
	"github.com/tonimelisma/forgepush/internal/forge"
	"github.com/tonimelisma/forgepush/internal/report"
	"github.com/tonimelisma/forgepush/internal/upload"
	"github.com/tonimelisma/forgepush/internal/walk"
)

// toolName is always excluded from uploads, alongside the running
// executable's own name.
const toolName = "forgepush"

// newBroker builds the token broker client. Tests replace it to target an
// in-process broker.
var newBroker = func(creds connector.Credentials, logger *slog.Logger) *connector.Client {
	return connector.NewClient(creds, nil, logger)
}

// runPush is the root command: acquire a token, ensure the repository,
// enumerate the root and upload every file. --dry-run only enumerates.
func runPush(cmd *cobra.Command, _ []string) error {
	r := resolvedCfg
	if r == nil {
		return errors.New("no configuration loaded")
	}

	logger, closer := buildLogger(r, cmd.ErrOrStderr())
	if closer != nil {
		defer closer.Close()
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx := shutdownContext(runCtx, logger)

	p := &pusher{
		cfg:    r,
		logger: logger,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		quiet:  flagQuiet,
	}

	var err error
	if r.DryRun {
		err = p.dryRun(ctx)
	} else {
		err = p.push(ctx)
	}

	if err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
	}

	return err
}

// pusher carries one run's collaborators.
type pusher struct {
	cfg    *config.Resolved
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

func (p *pusher) enumerate(ctx context.Context) ([]walk.FileEntry, error) {
	enum := walk.NewEnumerator(walk.Options{
		SkipFiles:        p.cfg.SkipFiles,
		SkipDirs:         p.cfg.SkipDirs,
		IgnoreFile:       p.cfg.IgnoreFile,
		MaxFileSize:      p.cfg.MaxFileSize,
		BinaryExtensions: p.cfg.BinaryExtensions,
		ToolNames:        toolNames(),
	}, p.logger)

	entries, err := enum.List(ctx, p.cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	return entries, nil
}

func (p *pusher) dryRun(ctx context.Context) error {
	started := time.Now()

	entries, err := p.enumerate(ctx)
	if err != nil {
		return err
	}

	if !p.quiet && len(entries) > 0 {
		rows := make([][]string, 0, len(entries))
		for i := range entries {
			kind := "text"
			if entries[i].IsBinary {
				kind = "binary"
			}

			rows = append(rows, []string{entries[i].RemotePath, formatSize(entries[i].Size), kind})
		}

		printTable(p.out, []string{"PATH", "SIZE", "KIND"}, rows)
	}

	fmt.Fprintf(p.out, "Dry run: %d files would be uploaded to %s\n", len(entries), p.cfg.Repository)

	if p.cfg.ReportFile == "" {
		return nil
	}

	rep := report.Planned(p.cfg.Repository.String(), p.cfg.RootDir, entries, started, time.Now())

	return p.saveReport(rep)
}

func (p *pusher) push(ctx context.Context) error {
	started := time.Now()
	env := config.ReadBrokerEnv()

	broker := newBroker(connector.Credentials{
		Hostname:     env.Hostname,
		ReplIdentity: env.ReplIdentity,
		Renewal:      env.Renewal,
	}, p.logger)

	// Fetch once up front so credential problems abort before any API call.
	// The forge client reuses this source for the rest of the run.
	tokens := broker.TokenSource(ctx)
	if _, err := tokens.Token(); err != nil {
		return fmt.Errorf("acquiring forge token: %w", err)
	}

	userAgent := p.cfg.UserAgent
	if userAgent == "" {
		userAgent = toolName + "/" + version
	}

	client, err := forge.NewClient(
		forge.NewHTTPClient(tokens, p.cfg.HTTPTimeout),
		p.cfg.APIURL, userAgent, p.logger,
	)
	if err != nil {
		return err
	}

	repo, err := client.EnsureRepository(ctx, p.cfg.Repository, forge.CreateOptions{
		Description: p.cfg.Description,
		Private:     p.cfg.Private,
	})
	if err != nil {
		return fmt.Errorf("preparing repository %s: %w", p.cfg.Repository, err)
	}

	if repo.Created {
		statusf(p.out, p.quiet, "Created repository %s\n", repo.FullName())
	} else {
		statusf(p.out, p.quiet, "Using existing repository %s\n", repo.FullName())
	}

	entries, err := p.enumerate(ctx)
	if err != nil {
		return err
	}

	uploader := upload.New(client, upload.Options{
		TextMode: upload.TextMode(p.cfg.TextDecoding),
		Verify:   p.cfg.VerifyUploads,
		Branch:   p.cfg.Branch,
	}, &consoleReporter{out: p.out, errOut: p.errOut, quiet: p.quiet}, p.logger)

	result := uploader.UploadAll(ctx, repo, entries)

	fmt.Fprintf(p.out, "Done: %s\n", result.Summary())

	if repo.HTMLURL != "" {
		fmt.Fprintf(p.out, "Repository: %s\n", repo.HTMLURL)
	}

	if p.cfg.ReportFile != "" {
		if err := p.saveReport(report.FromResult(repo, p.cfg.RootDir, result, started, time.Now())); err != nil {
			return err
		}
	}

	if result.Skipped > 0 {
		return fmt.Errorf("interrupted with %d files not attempted: %w", result.Skipped, context.Cause(ctx))
	}

	if flagStrict {
		if err := result.Err(); err != nil {
			return fmt.Errorf("%d of %d files failed: %w", len(result.Failed), len(entries), err)
		}
	}

	return nil
}

func (p *pusher) saveReport(rep *report.Report) error {
	if err := report.Save(p.cfg.ReportFile, rep); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	p.logger.Info("report written", slog.String("path", p.cfg.ReportFile))

	return nil
}

// consoleReporter prints per-file progress: successes to stdout, failures
// to stderr.
type consoleReporter struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

func (c *consoleReporter) FileUploaded(o upload.FileOutcome) {
	statusf(c.out, c.quiet, "Uploaded: %s\n", o.RemotePath)
}

func (c *consoleReporter) FileFailed(o upload.FileOutcome) {
	fmt.Fprintf(c.errOut, "Failed: %s: %v\n", o.RemotePath, o.Err)
}

// toolNames returns the file names of this tool, which are never uploaded.
func toolNames() []string {
	names := []string{toolName}

	if exe, err := os.Executable(); err == nil {
		if base := filepath.Base(exe); base != toolName {
			names = append(names, base)
		}
	}

	return names
}
