package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.tex")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestLoad(t *testing.T) {
	path := writeDoc(t, "Diseño \\cite{r1}\n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Text != "Diseño \\cite{r1}\n" {
		t.Errorf("Text = %q", doc.Text)
	}
	if doc.Hash() != Hash([]byte(doc.Text)) {
		t.Error("hash does not match content")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.tex")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for directory")
	}

	path := filepath.Join(t.TempDir(), "latin1.tex")
	if err := os.WriteFile(path, []byte{'d', 'i', 's', 'e', 0xf1, 'o'}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestCommit_WritesBackupThenDocument(t *testing.T) {
	path := writeDoc(t, "old text")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	res, err := doc.Commit("new text", CommitOptions{})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !res.Written {
		t.Error("expected Written")
	}
	if res.Backup != path+".bak1" {
		t.Errorf("backup path = %q", res.Backup)
	}
	if got := readFile(t, res.Backup); got != "old text" {
		t.Errorf("backup content = %q", got)
	}
	if got := readFile(t, path); got != "new text" {
		t.Errorf("document content = %q", got)
	}

	// A second commit takes the next number and backs up the committed text.
	res, err = doc.Commit("newer text", CommitOptions{})
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if res.Backup != path+".bak2" {
		t.Errorf("second backup path = %q", res.Backup)
	}
	if got := readFile(t, res.Backup); got != "new text" {
		t.Errorf("second backup content = %q", got)
	}
}

func TestCommit_Unchanged(t *testing.T) {
	path := writeDoc(t, "same")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	res, err := doc.Commit("same", CommitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Written || res.Backup != "" {
		t.Errorf("expected no write, got %+v", res)
	}
	backups, _ := ListBackups(path, "")
	if len(backups) != 0 {
		t.Errorf("expected no backups, got %d", len(backups))
	}
}

func TestCommit_NoBackup(t *testing.T) {
	path := writeDoc(t, "a")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	res, err := doc.Commit("b", CommitOptions{NoBackup: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Backup != "" {
		t.Errorf("unexpected backup %q", res.Backup)
	}
	if _, err := os.Stat(path + ".bak1"); !os.IsNotExist(err) {
		t.Error("backup file should not exist")
	}
}

func TestCommit_ModifiedOnDisk(t *testing.T) {
	path := writeDoc(t, "original")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("edited elsewhere"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err = doc.Commit("ours", CommitOptions{})
	if !errors.Is(err, ErrModifiedOnDisk) {
		t.Fatalf("expected ErrModifiedOnDisk, got %v", err)
	}
	if got := readFile(t, path); got != "edited elsewhere" {
		t.Errorf("document overwritten: %q", got)
	}
}

func TestCommit_BackupFailureAborts(t *testing.T) {
	path := writeDoc(t, "original")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// A regular file where the backup directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, err = doc.Commit("changed", CommitOptions{BackupDir: filepath.Join(blocker, "backups")})
	if err == nil {
		t.Fatal("expected backup error")
	}
	if !errors.Is(err, ErrBackupFailed) {
		t.Errorf("unexpected error: %v", err)
	}
	if got := readFile(t, path); got != "original" {
		t.Errorf("document written despite backup failure: %q", got)
	}
}

func TestCommit_NoTempFilesLeft(t *testing.T) {
	path := writeDoc(t, "x")
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Commit("y", CommitOptions{NoBackup: true}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
