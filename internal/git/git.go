// Package git provides read-only access to the repository a build runs in.
package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

var (
	ErrNotAGitRepo = errors.New("not a git repository")
	ErrNoCommits   = errors.New("repository has no commits")
	ErrInvalidRepo = errors.New("invalid git repository")
)

// ShortHashLength is the number of hex digits HeadCommitShort keeps.
const ShortHashLength = 7

// Repo is the git surface the build needs.
type Repo interface {
	IsGitRepo(ctx context.Context) (bool, error)
	HeadCommit(ctx context.Context) (string, error)
}

// Client reads the repository containing repoPath. Parent directories are
// searched for .git, so repoPath may be any directory inside the work tree.
type Client struct {
	repoPath string
}

// NewClient creates a new Git client for the given path.
func NewClient(repoPath string) *Client {
	return &Client{repoPath: repoPath}
}

func (c *Client) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(c.repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotAGitRepo, c.repoPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepo, err.Error())
	}
	return repo, nil
}

// IsGitRepo checks whether the path is inside a valid git repository.
// Returns (true, nil) if valid, (false, nil) if there is none, (false, err) if corrupted.
func (c *Client) IsGitRepo(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}

	_, err := c.open()
	if errors.Is(err, ErrNotAGitRepo) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HeadCommit returns the full commit hash of HEAD.
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := c.open()
	if err != nil {
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		// a fresh repository has an unborn HEAD
		return "", fmt.Errorf("%w: %v", ErrNoCommits, err)
	}
	return ref.Hash().String(), nil
}

// HeadCommitShort returns the abbreviated hash of HEAD.
func HeadCommitShort(ctx context.Context, repo Repo) (string, error) {
	hash, err := repo.HeadCommit(ctx)
	if err != nil {
		return "", err
	}
	if len(hash) > ShortHashLength {
		hash = hash[:ShortHashLength]
	}
	return hash, nil
}
