// Package upload writes enumerated files into a forge repository one at a
// time, isolating per-file failures.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tonimelisma/forgepush/internal/forge"
	"github.com/tonimelisma/forgepush/internal/walk"
	"github.com/tonimelisma/forgepush/pkg/gitblob"
)

// ErrVerifyMismatch means the forge stored different content than was sent.
var ErrVerifyMismatch = errors.New("upload: stored blob does not match local content")

// Putter writes one file into a repository. Satisfied by *forge.Client.
type Putter interface {
	PutFile(ctx context.Context, repo *forge.Repository, req forge.PutRequest) (*forge.PutResult, error)
}

// Reporter receives per-file progress. Calls happen on the uploading
// goroutine, in entry order.
type Reporter interface {
	FileUploaded(o FileOutcome)
	FileFailed(o FileOutcome)
}

// Options configures an Uploader.
type Options struct {
	TextMode TextMode

	// Verify compares the blob ID reported by the forge with the local one.
	Verify bool

	// Branch to commit to. Empty means the repository's default branch.
	Branch string
}

// Uploader uploads file entries sequentially.
type Uploader struct {
	putter   Putter
	opts     Options
	reporter Reporter
	logger   *slog.Logger

	readFile func(string) ([]byte, error)
}

// New creates an Uploader. reporter and logger may be nil.
func New(putter Putter, opts Options, reporter Reporter, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.TextMode == "" {
		opts.TextMode = TextReplace
	}

	return &Uploader{
		putter:   putter,
		opts:     opts,
		reporter: reporter,
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// UploadAll uploads every entry in order. A failing file is logged,
// recorded and skipped; it never stops the run. Cancellation stops the run
// between files, and the remaining entries are counted as skipped.
func (u *Uploader) UploadAll(ctx context.Context, repo *forge.Repository, entries []walk.FileEntry) *Result {
	result := &Result{}

	u.logger.Info("uploading files",
		slog.String("repo", repo.FullName()),
		slog.Int("files", len(entries)),
	)

	for i := range entries {
		if ctx.Err() != nil {
			result.Skipped = len(entries) - i
			u.logger.Warn("upload interrupted", slog.Int("skipped", result.Skipped))

			break
		}

		outcome := u.uploadOne(ctx, repo, &entries[i])

		if outcome.Err != nil {
			// A reporter already surfaces the failure to the user.
			level := slog.LevelWarn
			if u.reporter != nil {
				level = slog.LevelDebug
			}

			u.logger.LogAttrs(ctx, level, "upload failed",
				slog.String("path", outcome.RemotePath),
				slog.String("error", outcome.Err.Error()),
			)

			result.Failed = append(result.Failed, outcome)

			if u.reporter != nil {
				u.reporter.FileFailed(outcome)
			}

			continue
		}

		result.Uploaded = append(result.Uploaded, outcome)

		if u.reporter != nil {
			u.reporter.FileUploaded(outcome)
		}
	}

	u.logger.Info("upload complete",
		slog.String("repo", repo.FullName()),
		slog.Int("uploaded", len(result.Uploaded)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("skipped", result.Skipped),
	)

	return result
}

func (u *Uploader) uploadOne(ctx context.Context, repo *forge.Repository, entry *walk.FileEntry) FileOutcome {
	outcome := FileOutcome{RemotePath: entry.RemotePath}

	data, err := u.readFile(entry.AbsPath)
	if err != nil {
		outcome.Err = fmt.Errorf("upload: reading %s: %w", entry.RelPath, err)
		return outcome
	}

	p, err := encodePayload(data, entry.IsBinary, u.opts.TextMode)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	if p.lossy {
		u.logger.Warn("invalid UTF-8 replaced during text decoding",
			slog.String("path", entry.RemotePath),
		)
	}

	outcome.Size = int64(len(p.data))
	outcome.Lossy = p.lossy

	// Cancellation stops the run between files, never during a write.
	put, err := u.putter.PutFile(context.WithoutCancel(ctx), repo, forge.PutRequest{
		Path:    entry.RemotePath,
		Content: p.data,
		Message: "Add " + entry.RemotePath,
		Branch:  u.opts.Branch,
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.BlobSHA = put.BlobSHA
	outcome.Updated = put.Updated

	if u.opts.Verify {
		if want := gitblob.Sum(p.data); put.BlobSHA != want {
			outcome.Err = fmt.Errorf("%w: %s: remote %s, local %s", ErrVerifyMismatch, entry.RemotePath, put.BlobSHA, want)
			return outcome
		}

		outcome.Verified = true
	}

	u.logger.Debug("uploaded file",
		slog.String("path", entry.RemotePath),
		slog.Int64("bytes", outcome.Size),
		slog.Bool("updated", outcome.Updated),
	)

	return outcome
}
