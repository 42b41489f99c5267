package gitlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/forensor/forensor/internal/domain"
)

// LogAdapter implements domain.HistoryProvider using go-git.
type LogAdapter struct{}

func New() *LogAdapter {
	return &LogAdapter{}
}

// Log walks the commit graph from HEAD, newest first, and groups file
// touches by repository-relative path. A tree that is not a repository,
// or a repository without commits, returns domain.ErrNoHistory.
func (a *LogAdapter) Log(ctx context.Context, root string, maxCommits int) (*domain.History, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s: %w", root, domain.ErrNoHistory)
	}
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("%s: %w", root, domain.ErrNoHistory)
	}
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	defer iter.Close()

	hist := &domain.History{
		Events: make(map[string][]domain.CommitEvent),
		Head:   head.Hash().String(),
	}

	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxCommits > 0 && hist.Commits >= maxCommits {
			return storer.ErrStop
		}
		hist.Commits++

		stats, err := c.Stats()
		if err != nil {
			// Stats can fail on exotic merge trees; skip the commit.
			return nil
		}
		when := c.Committer.When.UTC()
		hash := c.Hash.String()
		for _, st := range stats {
			hist.Events[st.Name] = append(hist.Events[st.Name], domain.CommitEvent{
				Path: st.Name,
				Hash: hash,
				When: when,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking commits: %w", err)
	}

	return hist, nil
}
