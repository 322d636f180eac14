package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/raoulx24/snapkeeper/internal/logging"
)

// Commit is one entry of the backup repository history. ID holds the raw
// object hash bytes.
type Commit struct {
	ID      []byte `json:"id"`
	Message string `json:"message"`
}

// GitSource lists the history of a local git repository.
type GitSource struct {
	path string
	log  logging.Logger
}

func NewGitSource(path string, log logging.Logger) *GitSource {
	return &GitSource{path: path, log: log.With("component", "commits")}
}

// FetchCommits walks history from HEAD, newest first. A repository
// without commits yields an empty list.
func (s *GitSource) FetchCommits(ctx context.Context) ([]Commit, error) {
	repo, err := git.PlainOpen(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", s.path, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	defer iter.Close()

	out := []Commit{}
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out = append(out, Commit{
			ID:      append([]byte(nil), c.Hash[:]...),
			Message: c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking log: %w", err)
	}

	s.log.Debug("history loaded", "commits", len(out))
	return out, nil
}
