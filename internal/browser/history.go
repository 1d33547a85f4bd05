package browser

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// MaxHistory caps the commits returned by History.
const MaxHistory = 100

// CommitInfo is one row of the history page.
type CommitInfo struct {
	Hash      string
	ShortHash string
	Message   string
	Author    string
	Email     string
	When      time.Time
}

// History returns up to limit commits reachable from ref, newest first.
// A limit outside 1..MaxHistory means MaxHistory.
func (r *Repository) History(ref string, limit int) ([]CommitInfo, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	commit, err := r.ResolveRef(ref)
	if err != nil {
		return nil, err
	}

	iter, err := r.repo.Log(&git.LogOptions{From: commit.Hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history: %w", err)
	}
	defer iter.Close()

	commits := make([]CommitInfo, 0, limit)

	for len(commits) < limit {
		c, err := iter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return nil, fmt.Errorf("failed to walk history: %w", err)
		}

		hash := c.Hash.String()

		commits = append(commits, CommitInfo{
			Hash:      hash,
			ShortHash: hash[:7],
			Message:   shortMessage(c.Message),
			Author:    c.Author.Name,
			Email:     c.Author.Email,
			When:      c.Author.When,
		})
	}

	return commits, nil
}

func shortMessage(msg string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(msg), "\n")
	return strings.TrimSpace(first)
}
