package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v55/github"

	"github.com/tonimelisma/forgepush/internal/repoid"
)

// Repository is the handle of a remote repository that uploads target.
type Repository struct {
	Owner         string
	Name          string
	HTMLURL       string
	DefaultBranch string
	Private       bool

	// Created is true when this run created the repository.
	Created bool
}

// FullName returns "owner/name".
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// CreateOptions are the settings of a newly created repository.
type CreateOptions struct {
	Description string
	Private     bool
}

// pushPermissions are the collaborator permission levels that allow writes.
var pushPermissions = map[string]bool{
	"admin":    true,
	"maintain": true,
	"write":    true,
}

// EnsureRepository creates the repository named by ref, or resolves it if
// the name is already taken. A bare name targets the authenticated account;
// an owner other than the authenticated login targets that organization.
//
// When the name is taken the existing repository is only accepted if it is
// visible, owned by the expected owner, and writable by the caller.
func (c *Client) EnsureRepository(ctx context.Context, ref repoid.Ref, opts CreateOptions) (*Repository, error) {
	org := ""

	if ref.HasOwner() {
		login, err := c.Me(ctx)
		if err != nil {
			return nil, err
		}

		if !strings.EqualFold(ref.Owner(), login) {
			org = ref.Owner()
		}
	}

	c.logger.Info("creating repository",
		slog.String("name", ref.Name()),
		slog.String("org", org),
		slog.Bool("private", opts.Private),
	)

	created, _, err := c.gh.Repositories.Create(ctx, org, &github.Repository{
		Name:        github.String(ref.Name()),
		Description: github.String(opts.Description),
		Private:     github.Bool(opts.Private),
		HasIssues:   github.Bool(true),
		HasProjects: github.Bool(true),
		HasWiki:     github.Bool(true),
	})
	if err == nil {
		repo := toRepository(created, true)
		c.logger.Info("repository created", slog.String("repo", repo.FullName()), slog.String("url", repo.HTMLURL))

		return repo, nil
	}

	if !isNameTaken(err) {
		return nil, fmt.Errorf("forge: creating repository %s: %w", ref, wrapError(err))
	}

	c.logger.Info("repository name already taken, resolving existing repository",
		slog.String("name", ref.Name()),
	)

	return c.resolveExisting(ctx, ref)
}

// resolveExisting verifies that the taken name refers to a repository the
// caller may write to.
func (c *Client) resolveExisting(ctx context.Context, ref repoid.Ref) (*Repository, error) {
	login, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}

	owner := login
	if ref.HasOwner() {
		owner = ref.Owner()
	}

	existing, _, err := c.gh.Repositories.Get(ctx, owner, ref.Name())
	if err != nil {
		wrapped := wrapError(err)
		if errors.Is(wrapped, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, owner, ref.Name())
		}

		return nil, fmt.Errorf("forge: fetching repository %s/%s: %w", owner, ref.Name(), wrapped)
	}

	actual := existing.GetOwner().GetLogin()
	if !strings.EqualFold(actual, owner) {
		return nil, fmt.Errorf("%w: %s/%s resolves to %s", ErrNotOwner, owner, ref.Name(), existing.GetFullName())
	}

	if err := c.checkPushAccess(ctx, actual, existing.GetName(), login); err != nil {
		return nil, err
	}

	repo := toRepository(existing, false)
	c.logger.Info("using existing repository", slog.String("repo", repo.FullName()))

	return repo, nil
}

func (c *Client) checkPushAccess(ctx context.Context, owner, name, login string) error {
	level, _, err := c.gh.Repositories.GetPermissionLevel(ctx, owner, name, login)
	if err != nil {
		wrapped := wrapError(err)
		if errors.Is(wrapped, ErrForbidden) || errors.Is(wrapped, ErrNotFound) {
			return fmt.Errorf("%w: %s/%s: %w", ErrNoPushAccess, owner, name, wrapped)
		}

		return fmt.Errorf("forge: checking permissions on %s/%s: %w", owner, name, wrapped)
	}

	permission := level.GetPermission()
	if !pushPermissions[permission] {
		return fmt.Errorf("%w: %s/%s (permission %q)", ErrNoPushAccess, owner, name, permission)
	}

	return nil
}

// isNameTaken reports whether a create failure is the "name already
// exists" validation error.
func isNameTaken(err error) bool {
	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil ||
		respErr.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}

	if strings.Contains(strings.ToLower(respErr.Message), "already exists") {
		return true
	}

	for _, fe := range respErr.Errors {
		if strings.Contains(strings.ToLower(fe.Message), "already exists") {
			return true
		}
	}

	return false
}

func toRepository(r *github.Repository, created bool) *Repository {
	return &Repository{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		Created:       created,
	}
}
