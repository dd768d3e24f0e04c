// internal/apply/repo.go
package apply

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// RepoSnapshot is the repository state right before the agent edits anything.
// Nothing is rolled back automatically; the revision is what an operator
// resets to.
type RepoSnapshot struct {
	Root   string
	Head   string
	Branch string
	Dirty  bool
}

// ErrNoRepository means dir is not inside a git work tree.
var ErrNoRepository = errors.New("not a git repository")

// SnapshotRepo finds the repository containing dir and records its HEAD.
func SnapshotRepo(dir string) (*RepoSnapshot, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	snap := &RepoSnapshot{}
	if wt, err := repo.Worktree(); err == nil {
		snap.Root = wt.Filesystem.Root()
		if status, err := wt.Status(); err == nil {
			snap.Dirty = !status.IsClean()
		}
	}

	head, err := repo.Head()
	if err != nil {
		// A freshly initialized repository has no commits yet.
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return snap, nil
		}
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}
	snap.Head = head.Hash().String()
	if head.Name().IsBranch() {
		snap.Branch = head.Name().Short()
	}
	return snap, nil
}
