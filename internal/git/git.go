// Package git reports the version-control state of a manuscript.
package git

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// ErrFileNotTracked indicates the file is not tracked by git.
var ErrFileNotTracked = errors.New("file not tracked by git")

// FileState is the git state of one file.
type FileState struct {
	RepoRoot string `json:"repo_root"`
	Commit   string `json:"commit"` // HEAD SHA, empty in a repository without commits
	Dirty    bool   `json:"dirty"`  // Uncommitted changes to the file
}

// FindRepoRoot finds the root of the git repository containing the given path.
// Returns ErrNotGitRepo if not in a git repository.
func FindRepoRoot(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(string(output)), nil
}

// HeadCommit returns the full SHA of HEAD, or "" when there are no commits yet.
func HeadCommit(repoRoot string) string {
	cmd := exec.Command("git", "-C", repoRoot, "rev-parse", "--verify", "HEAD^{commit}")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// IsFileTracked checks if the file at path is tracked by git.
func IsFileTracked(repoRoot, path string) bool {
	cmd := exec.Command("git", "-C", repoRoot, "ls-files", "--error-unmatch", "--", path)
	return cmd.Run() == nil
}

// State returns the git state of the file at path. Returns ErrNotGitRepo
// outside a repository and ErrFileNotTracked for untracked files.
func State(path string) (FileState, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileState{}, err
	}
	root, err := FindRepoRoot(filepath.Dir(abs))
	if err != nil {
		return FileState{}, err
	}
	if !IsFileTracked(root, abs) {
		return FileState{RepoRoot: root}, ErrFileNotTracked
	}

	state := FileState{RepoRoot: root, Commit: HeadCommit(root)}
	cmd := exec.Command("git", "-C", root, "status", "--porcelain", "--", abs)
	output, err := cmd.Output()
	if err != nil {
		return state, err
	}
	state.Dirty = strings.TrimSpace(string(output)) != ""
	return state, nil
}
