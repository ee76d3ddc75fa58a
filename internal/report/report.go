// Package report writes a JSON summary of an upload run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/tonimelisma/forgepush/internal/forge"
	"github.com/tonimelisma/forgepush/internal/upload"
	"github.com/tonimelisma/forgepush/internal/walk"
)

// FilePerms is the permission mode of report files.
const FilePerms = 0o644

// DirPerms is used when creating the report directory.
const DirPerms = 0o755

// File status values.
const (
	StatusUploaded = "uploaded"
	StatusFailed   = "failed"
	StatusPlanned  = "planned"
)

// Report is the on-disk format of a run summary.
type Report struct {
	Repository string    `json:"repository,omitempty"`
	URL        string    `json:"url,omitempty"`
	Created    bool      `json:"created"`
	Root       string    `json:"root"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Uploaded   int       `json:"uploaded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Files      []File    `json:"files"`
}

// File is the per-file record of a run.
type File struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Size     int64  `json:"size"`
	BlobSHA  string `json:"blob_sha,omitempty"`
	Verified bool   `json:"verified,omitempty"`
	Updated  bool   `json:"updated,omitempty"`
	Lossy    bool   `json:"lossy,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FromResult builds the report of a completed upload run. Files appear
// uploaded first, then failed, each in upload order.
func FromResult(repo *forge.Repository, root string, res *upload.Result, started, finished time.Time) *Report {
	r := &Report{
		Repository: repo.FullName(),
		URL:        repo.HTMLURL,
		Created:    repo.Created,
		Root:       root,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Uploaded:   len(res.Uploaded),
		Failed:     len(res.Failed),
		Skipped:    res.Skipped,
		Files:      make([]File, 0, len(res.Uploaded)+len(res.Failed)),
	}

	for _, o := range res.Uploaded {
		r.Files = append(r.Files, fileRecord(o, StatusUploaded))
	}

	for _, o := range res.Failed {
		r.Files = append(r.Files, fileRecord(o, StatusFailed))
	}

	return r
}

// Planned builds the report of a dry run: the files that would be uploaded.
func Planned(repository, root string, entries []walk.FileEntry, started, finished time.Time) *Report {
	r := &Report{
		Repository: repository,
		Root:       root,
		DryRun:     true,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Files:      make([]File, 0, len(entries)),
	}

	for _, e := range entries {
		r.Files = append(r.Files, File{Path: e.RemotePath, Status: StatusPlanned, Size: e.Size})
	}

	return r
}

func fileRecord(o upload.FileOutcome, status string) File {
	f := File{
		Path:     o.RemotePath,
		Status:   status,
		Size:     o.Size,
		BlobSHA:  o.BlobSHA,
		Verified: o.Verified,
		Updated:  o.Updated,
		Lossy:    o.Lossy,
	}

	if o.Err != nil {
		f.Error = o.Err.Error()
	}

	return f
}

// Load reads a report. Returns (nil, nil) if the file does not exist.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: decoding %s: %w", path, err)
	}

	return &r, nil
}

// Save writes the report atomically (write-to-temp + rename).
func Save(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("report: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("report: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("report: setting permissions: %w", err)
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("report: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("report: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("report: renaming: %w", err)
	}

	success = true

	return nil
}
