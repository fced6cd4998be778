package git

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// initRepo creates a git repository with one committed file.
func initRepo(t *testing.T) (string, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-q")
	doc := filepath.Join(dir, "paper.tex")
	if err := os.WriteFile(doc, []byte("\\cite{a}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "paper.tex")
	run("commit", "-q", "-m", "initial")
	return dir, doc
}

func TestState_Clean(t *testing.T) {
	_, doc := initRepo(t)

	state, err := State(doc)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Dirty {
		t.Error("Dirty = true for a committed file")
	}
	if len(state.Commit) != 40 {
		t.Errorf("Commit = %q, want a full SHA", state.Commit)
	}
}

func TestState_Dirty(t *testing.T) {
	_, doc := initRepo(t)
	if err := os.WriteFile(doc, []byte("\\cite{b}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	state, err := State(doc)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if !state.Dirty {
		t.Error("Dirty = false after modifying the file")
	}
}

func TestState_Untracked(t *testing.T) {
	dir, _ := initRepo(t)
	other := filepath.Join(dir, "notes.tex")
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := State(other); !errors.Is(err, ErrFileNotTracked) {
		t.Errorf("State(untracked) error = %v, want ErrFileNotTracked", err)
	}
}

func TestState_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	doc := filepath.Join(t.TempDir(), "paper.tex")
	if err := os.WriteFile(doc, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := State(doc); !errors.Is(err, ErrNotGitRepo) {
		t.Errorf("State(outside repo) error = %v, want ErrNotGitRepo", err)
	}
}
