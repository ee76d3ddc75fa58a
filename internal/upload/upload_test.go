package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/forgepush/internal/forge"
	"github.com/tonimelisma/forgepush/internal/walk"
	"github.com/tonimelisma/forgepush/pkg/gitblob"
	"github.com/tonimelisma/forgepush/testutil"
)

// mockPutter records PutFile calls and returns canned results.
type mockPutter struct {
	calls     []forge.PutRequest
	failPaths map[string]error
	wrongSHA  map[string]bool
	onPut     func(req forge.PutRequest)
}

// PutFile fails with the context error when ctx is done by the time the
// call would complete, as an HTTP-backed putter does.
func (m *mockPutter) PutFile(ctx context.Context, _ *forge.Repository, req forge.PutRequest) (*forge.PutResult, error) {
	m.calls = append(m.calls, req)

	if m.onPut != nil {
		m.onPut(req)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := m.failPaths[req.Path]; err != nil {
		return nil, err
	}

	sha := gitblob.Sum(req.Content)
	if m.wrongSHA[req.Path] {
		sha = "0000000000000000000000000000000000000000"
	}

	return &forge.PutResult{BlobSHA: sha, CommitSHA: "c0ffee"}, nil
}

func (m *mockPutter) paths() []string {
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Path
	}

	return out
}

// recordingReporter captures progress callbacks in order.
type recordingReporter struct {
	events []string
}

func (r *recordingReporter) FileUploaded(o FileOutcome) {
	r.events = append(r.events, "ok:"+o.RemotePath)
}

func (r *recordingReporter) FileFailed(o FileOutcome) {
	r.events = append(r.events, "fail:"+o.RemotePath)
}

var testRepo = &forge.Repository{Owner: "octocat", Name: "site"}

// writeEntries writes files into a temp root and returns entries for them
// in the given order. Binary-ness follows the .png/.pdf extensions.
func writeEntries(t *testing.T, files [][2]string) []walk.FileEntry {
	t.Helper()

	root := t.TempDir()
	entries := make([]walk.FileEntry, 0, len(files))

	for _, f := range files {
		rel, content := f[0], f[1]
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o600))

		ext := filepath.Ext(rel)
		entries = append(entries, walk.FileEntry{
			AbsPath:    abs,
			RelPath:    rel,
			RemotePath: rel,
			IsBinary:   ext == ".png" || ext == ".pdf",
			Size:       int64(len(content)),
		})
	}

	return entries
}

func TestUploadAll_SequentialWithCommitMessages(t *testing.T) {
	entries := writeEntries(t, [][2]string{
		{"a.txt", "hello"},
		{"docs/guide.md", "# Guide"},
		{"image.png", "\x89PNG\r\n"},
	})

	putter := &mockPutter{}
	reporter := &recordingReporter{}

	result := New(putter, Options{Verify: true}, reporter, slog.Default()).UploadAll(t.Context(), testRepo, entries)

	assert.Equal(t, []string{"a.txt", "docs/guide.md", "image.png"}, putter.paths())
	assert.Equal(t, "Add docs/guide.md", putter.calls[1].Message)
	assert.Equal(t, []byte("\x89PNG\r\n"), putter.calls[2].Content)

	require.Len(t, result.Uploaded, 3)
	assert.Empty(t, result.Failed)
	assert.True(t, result.Uploaded[0].Verified)
	assert.Equal(t, int64(5), result.Uploaded[0].Size)
	assert.Equal(t, "3 uploaded, 0 failed", result.Summary())
	assert.NoError(t, result.Err())
	assert.Equal(t, []string{"ok:a.txt", "ok:docs/guide.md", "ok:image.png"}, reporter.events)
}

func TestUploadAll_FailureIsolation(t *testing.T) {
	entries := writeEntries(t, [][2]string{
		{"one.txt", "1"},
		{"two.txt", "2"},
		{"three.txt", "3"},
	})

	boom := errors.New("boom")
	putter := &mockPutter{failPaths: map[string]error{"two.txt": boom}}
	reporter := &recordingReporter{}

	result := New(putter, Options{}, reporter, nil).UploadAll(t.Context(), testRepo, entries)

	assert.Equal(t, []string{"one.txt", "two.txt", "three.txt"}, putter.paths(), "no retry, no abort")
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "two.txt", result.Failed[0].RemotePath)
	require.ErrorIs(t, result.Failed[0].Err, boom)
	assert.Len(t, result.Uploaded, 2)
	assert.Equal(t, "2 uploaded, 1 failed", result.Summary())
	assert.Equal(t, []string{"ok:one.txt", "fail:two.txt", "ok:three.txt"}, reporter.events)

	err := result.Err()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "two.txt: boom")
}

func TestUploadAll_UnreadableFile(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}, {"b.txt", "b"}})
	require.NoError(t, os.Remove(entries[0].AbsPath))

	putter := &mockPutter{}
	result := New(putter, Options{}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Failed[0].Err, os.ErrNotExist)
	assert.Equal(t, []string{"b.txt"}, putter.paths())
}

func TestUploadAll_VerifyMismatch(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}, {"b.txt", "b"}})
	putter := &mockPutter{wrongSHA: map[string]bool{"a.txt": true}}

	result := New(putter, Options{Verify: true}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Failed[0].Err, ErrVerifyMismatch)
	require.Len(t, result.Uploaded, 1)
	assert.True(t, result.Uploaded[0].Verified)
}

func TestUploadAll_VerifyDisabled(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}})
	putter := &mockPutter{wrongSHA: map[string]bool{"a.txt": true}}

	result := New(putter, Options{Verify: false}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	require.Len(t, result.Uploaded, 1)
	assert.False(t, result.Uploaded[0].Verified)
}

func TestUploadAll_InvalidUTF8(t *testing.T) {
	t.Parallel()

	invalid := "ok\xffend"

	tests := []struct {
		name      string
		mode      TextMode
		path      string
		wantSent  []byte
		wantErr   error
		wantLossy bool
	}{
		{"replace substitutes", TextReplace, "notes.txt", []byte("ok�end"), nil, true},
		{"strict fails", TextStrict, "notes.txt", nil, ErrInvalidText, false},
		{"raw keeps bytes", TextRaw, "notes.txt", []byte(invalid), nil, false},
		{"binary untouched in replace", TextReplace, "scan.pdf", []byte(invalid), nil, false},
		{"binary untouched in strict", TextStrict, "scan.pdf", []byte(invalid), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entries := writeEntries(t, [][2]string{{tt.path, invalid}})
			putter := &mockPutter{}

			result := New(putter, Options{TextMode: tt.mode, Verify: true}, nil, nil).UploadAll(t.Context(), testRepo, entries)

			if tt.wantErr != nil {
				require.Len(t, result.Failed, 1)
				require.ErrorIs(t, result.Failed[0].Err, tt.wantErr)
				assert.Empty(t, putter.calls)

				return
			}

			require.Len(t, result.Uploaded, 1)
			require.Len(t, putter.calls, 1)
			assert.Equal(t, tt.wantSent, putter.calls[0].Content)
			assert.Equal(t, tt.wantLossy, result.Uploaded[0].Lossy)
		})
	}
}

func TestUploadAll_Canceled(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}, {"b.txt", "b"}, {"c.txt", "c"}})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	putter := &mockPutter{onPut: func(req forge.PutRequest) {
		if req.Path == "a.txt" {
			cancel()
		}
	}}

	result := New(putter, Options{}, nil, nil).UploadAll(ctx, testRepo, entries)

	assert.Equal(t, []string{"a.txt"}, putter.paths())
	require.Len(t, result.Uploaded, 1, "the file in flight when the run is canceled still completes")
	assert.Equal(t, "a.txt", result.Uploaded[0].RemotePath)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, "1 uploaded, 0 failed, 2 skipped", result.Summary())
}

func TestUploadAll_CanceledBeforeStart(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}, {"b.txt", "b"}})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	putter := &mockPutter{}
	result := New(putter, Options{}, nil, nil).UploadAll(ctx, testRepo, entries)

	assert.Empty(t, putter.calls)
	assert.Equal(t, 2, result.Skipped)
}

func TestUploadAll_Branch(t *testing.T) {
	entries := writeEntries(t, [][2]string{{"a.txt", "a"}})
	putter := &mockPutter{}

	New(putter, Options{Branch: "gh-pages"}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	require.Len(t, putter.calls, 1)
	assert.Equal(t, "gh-pages", putter.calls[0].Branch)
}

// TestUploadAll_ForgeWireBodies runs the uploader against the fake forge
// and checks the base64 bodies that reach the API.
func TestUploadAll_ForgeWireBodies(t *testing.T) {
	fake := testutil.NewFakeForge(t, "octocat", "")
	fake.AddRepo(&testutil.FakeRepo{Owner: "octocat", Name: "site"})
	fake.FailPut("broken.txt", http.StatusInternalServerError)

	client, err := forge.NewClient(fake.Server.Client(), fake.URL(), "", nil)
	require.NoError(t, err)

	png := "\x89PNG\r\n\x1a\n\x00\x01"
	entries := writeEntries(t, [][2]string{
		{"a.txt", "hello"},
		{"broken.txt", "x"},
		{"image.png", png},
	})

	result := New(client, Options{Verify: true}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	assert.Equal(t, "2 uploaded, 1 failed", result.Summary())
	require.ErrorIs(t, result.Failed[0].Err, forge.ErrServerError)

	bodies := map[string]string{}

	for _, r := range fake.Requests() {
		if r.Method != http.MethodPut {
			continue
		}

		var body struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(r.Body, &body))
		bodies[r.Path] = body.Content
	}

	assert.Equal(t, "aGVsbG8=", bodies["/repos/octocat/site/contents/a.txt"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(png)), bodies["/repos/octocat/site/contents/image.png"])
	assert.Equal(t, []string{"a.txt", "image.png"}, fake.FilePaths("octocat", "site"))
}

func TestUploadAll_ForgeVerifyMismatch(t *testing.T) {
	fake := testutil.NewFakeForge(t, "octocat", "")
	fake.AddRepo(&testutil.FakeRepo{Owner: "octocat", Name: "site"})
	fake.ReportWrongBlob("a.txt")

	client, err := forge.NewClient(fake.Server.Client(), fake.URL(), "", nil)
	require.NoError(t, err)

	entries := writeEntries(t, [][2]string{{"a.txt", "hello"}})

	result := New(client, Options{Verify: true}, nil, nil).UploadAll(t.Context(), testRepo, entries)

	require.Len(t, result.Failed, 1)
	require.ErrorIs(t, result.Failed[0].Err, ErrVerifyMismatch)
}

func TestUploadAll_FailureLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		reporter Reporter
		wantWarn bool
	}{
		{"reporter surfaces failures", &recordingReporter{}, false},
		{"no reporter logs a warning", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := writeEntries(t, [][2]string{{"a.txt", "a"}})
			putter := &mockPutter{failPaths: map[string]error{"a.txt": errors.New("boom")}}

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

			result := New(putter, Options{}, tt.reporter, logger).UploadAll(t.Context(), testRepo, entries)
			require.Len(t, result.Failed, 1)

			assert.NotContains(t, buf.String(), "level=ERROR")

			if tt.wantWarn {
				assert.Contains(t, buf.String(), `level=WARN msg="upload failed"`)
			} else {
				assert.NotContains(t, buf.String(), "upload failed")
			}
		})
	}
}
