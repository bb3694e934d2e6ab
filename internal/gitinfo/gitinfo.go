// Package gitinfo stamps builds with the source tree's git state when the
// source root is (inside) a git repository.
package gitinfo

import (
	"errors"

	git "github.com/go-git/go-git/v5"
)

// HeadCommit returns the HEAD commit hash of the repository containing dir,
// searching parent directories the way the git CLI does. A source tree that
// is not under version control returns "" without error; builds are stamped
// opportunistically.
func HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", nil
		}
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		// A repository with no commits yet has no resolvable HEAD.
		return "", nil
	}
	return head.Hash().String(), nil
}
