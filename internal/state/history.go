package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// snapshotFile is the name of the state copy inside the history repository.
const snapshotFile = "data.json"

// History keeps every saved state snapshot as a commit in a local git
// repository, separate from the base directory itself.
type History struct {
	dir string
}

// Entry is one recorded snapshot.
type Entry struct {
	Hash    string
	When    time.Time
	Message string
}

// NewHistory returns a history rooted at dir. The repository is created on
// first use.
func NewHistory(dir string) *History {
	return &History{dir: dir}
}

// Init creates the repository if it does not exist yet.
func (h *History) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := h.open(true)
	return err
}

// Record writes snapshot into the repository and commits it. It returns
// plumbing.ZeroHash when the snapshot equals the last one.
func (h *History) Record(ctx context.Context, snapshot []byte, message string) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}

	repo, err := h.open(true)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("get worktree: %w", err)
	}

	if err := os.WriteFile(filepath.Join(h.dir, snapshotFile), snapshot, 0600); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("stage file %s: %w", snapshotFile, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("get status: %w", err)
	}
	if status.IsClean() {
		return plumbing.ZeroHash, nil
	}

	author := DetectAuthor()
	hash, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create commit: %w", err)
	}

	return hash, nil
}

// Log returns up to limit snapshots, newest first. A limit of zero or less
// returns all of them.
func (h *History) Log(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := h.open(false)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get HEAD: %w", err)
	}

	commits, err := repo.Log(&gogit.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer commits.Close()

	var entries []Entry
	err = commits.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(entries) >= limit {
			return storer.ErrStop
		}
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			When:    c.Author.When,
			Message: c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

// Snapshot returns the state recorded by the commit with the given hash.
func (h *History) Snapshot(ctx context.Context, hash string) (*Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo, err := h.open(false)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("find commit %s: %w", hash, err)
	}
	file, err := commit.File(snapshotFile)
	if err != nil {
		return nil, fmt.Errorf("find %s in %s: %w", snapshotFile, hash, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s in %s: %w", snapshotFile, hash, err)
	}
	return Decode([]byte(content))
}

func (h *History) open(create bool) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(h.dir)
	if err == nil {
		return repo, nil
	}
	if !create || !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open history repository: %w", err)
	}

	if err := os.MkdirAll(h.dir, 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	repo, err = gogit.PlainInit(h.dir, false)
	if err != nil {
		return nil, fmt.Errorf("initialize history repository: %w", err)
	}
	return repo, nil
}
