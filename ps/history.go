package ps

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"

	"github.com/nickyhof/DuckServe/core"
)

// History versions a bundle root with Git.
type History struct {
	repo *git.Repository
	root string
	mu   sync.Mutex
}

// OpenHistory opens the Git repository at root, creating it when absent.
func OpenHistory(root string) (*History, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, core.Wrap(core.FilesystemError, "failed to create bundle root", err)
	}

	wt := osfs.New(root)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, core.Wrap(core.FilesystemError, "failed to open git directory", err)
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository
	if _, statErr := os.Stat(fs.Root()); statErr != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
	} else {
		repo, err = git.Open(storer, wt)
	}
	if err != nil {
		return nil, core.Wrap(core.FilesystemError, "failed to open bundle history", err)
	}

	return &History{
		repo: repo,
		root: root,
	}, nil
}

// Record commits the current contents of bundle. When nothing changed since
// the last commit, the latest transaction is returned instead.
func (h *History) Record(bundle Bundle, manifest core.Manifest, identity core.Identity) (Transaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	wt, err := h.repo.Worktree()
	if err != nil {
		return Transaction{}, core.Wrap(core.FilesystemError, "failed to get worktree", err)
	}

	if _, err := wt.Add(bundle.Name); err != nil {
		return Transaction{}, core.Wrap(core.FilesystemError, fmt.Sprintf("failed to stage bundle %s", bundle.Name), err)
	}

	status, err := wt.Status()
	if err != nil {
		return Transaction{}, core.Wrap(core.FilesystemError, "failed to read worktree status", err)
	}
	if !hasStagedChanges(status, bundle.Name) {
		return h.latestTransaction(), nil
	}

	message := fmt.Sprintf("bundle %s: %d tables, %d queries", bundle.Name, len(manifest.Tables), len(manifest.Queries))
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  identity.Name,
			Email: identity.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return Transaction{}, core.Wrap(core.FilesystemError, "failed to commit bundle", err)
	}

	commit, err := h.repo.CommitObject(hash)
	if err != nil {
		return Transaction{Id: hash.String()}, nil
	}
	return transactionFromCommit(commit), nil
}

// hasStagedChanges reports whether anything below dir is staged. Other
// bundles in the same root are not considered.
func hasStagedChanges(status git.Status, dir string) bool {
	prefix := dir + "/"
	for path, fileStatus := range status {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			return true
		}
	}
	return false
}
