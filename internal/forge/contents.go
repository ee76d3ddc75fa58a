package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v55/github"
)

// PutRequest describes one create-or-update-file call.
type PutRequest struct {
	Path    string // slash-separated repository path
	Content []byte // raw payload; base64-encoded on the wire
	Message string // commit message
	Branch  string // empty means the repository's default branch
}

// PutResult reports the outcome of a successful write.
type PutResult struct {
	// BlobSHA is the git object ID the forge stored for the content.
	BlobSHA string

	// CommitSHA is the commit that recorded the write.
	CommitSHA string

	// Updated is true when an existing file was replaced.
	Updated bool
}

// PutFile writes a file into repo. The first attempt assumes the file is
// new. If the forge answers that the file exists and its current blob SHA
// is required, the SHA is looked up and the write is retried once as an
// update.
func (c *Client) PutFile(ctx context.Context, repo *Repository, req PutRequest) (*PutResult, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(req.Message),
		Content: req.Content,
	}

	if req.Branch != "" {
		opts.Branch = github.String(req.Branch)
	}

	resp, _, err := c.gh.Repositories.CreateFile(ctx, repo.Owner, repo.Name, escapePath(req.Path), opts)
	if err == nil {
		return toPutResult(resp, false), nil
	}

	if !isSHARequired(err) {
		return nil, fmt.Errorf("forge: writing %s: %w", req.Path, wrapError(err))
	}

	sha, err := c.blobSHA(ctx, repo, req.Path, req.Branch)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("file exists, updating",
		slog.String("path", req.Path),
		slog.String("sha", sha),
	)

	opts.SHA = github.String(sha)

	resp, _, err = c.gh.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, escapePath(req.Path), opts)
	if err != nil {
		return nil, fmt.Errorf("forge: updating %s: %w", req.Path, wrapError(err))
	}

	return toPutResult(resp, true), nil
}

// blobSHA returns the current blob SHA of a file.
func (c *Client) blobSHA(ctx context.Context, repo *Repository, path, branch string) (string, error) {
	var getOpts *github.RepositoryContentGetOptions
	if branch != "" {
		getOpts = &github.RepositoryContentGetOptions{Ref: branch}
	}

	file, _, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, escapePath(path), getOpts)
	if err != nil {
		return "", fmt.Errorf("forge: looking up %s: %w", path, wrapError(err))
	}

	if file == nil || file.GetSHA() == "" {
		return "", fmt.Errorf("forge: looking up %s: %w", path, errNotAFile)
	}

	return file.GetSHA(), nil
}

var errNotAFile = errors.New("path exists but is not a file")

// escapePath percent-encodes each segment of a repository path. The client
// library joins the path into the request URL verbatim, so '#', '?' and '%'
// in file names would otherwise truncate or corrupt it.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// isSHARequired reports whether a write failed because the file exists and
// the request did not name its current blob SHA.
func isSHARequired(err error) bool {
	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil ||
		respErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}

	return strings.Contains(respErr.Message, `"sha"`)
}

func toPutResult(resp *github.RepositoryContentResponse, updated bool) *PutResult {
	result := &PutResult{Updated: updated}

	if resp == nil {
		return result
	}

	if resp.Content != nil {
		result.BlobSHA = resp.Content.GetSHA()
	}

	result.CommitSHA = resp.Commit.GetSHA()

	return result
}
