package upload

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FileOutcome records what happened to one file.
type FileOutcome struct {
	RemotePath string
	Size       int64 // payload bytes sent

	// BlobSHA is the object ID the forge reported for the stored content.
	BlobSHA string

	// Verified is true when BlobSHA matched the locally computed ID.
	Verified bool

	// Updated is true when an existing remote file was replaced.
	Updated bool

	// Lossy is true when text decoding replaced invalid UTF-8.
	Lossy bool

	Err error
}

// Result is the outcome of an UploadAll run.
type Result struct {
	Uploaded []FileOutcome
	Failed   []FileOutcome

	// Skipped counts entries never attempted because the run was canceled.
	Skipped int
}

// Summary returns the one-line run summary.
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d uploaded, %d failed", len(r.Uploaded), len(r.Failed))
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}

	return s
}

// Err aggregates every per-file failure, or returns nil if there were none.
func (r *Result) Err() error {
	var merr *multierror.Error

	for _, o := range r.Failed {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", o.RemotePath, o.Err))
	}

	return merr.ErrorOrNil()
}
