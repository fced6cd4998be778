// Package document loads a manuscript as a single string and writes it back
// safely: a backup of the previous version is taken first and the new text is
// written to a temp file and renamed into place.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"go.uber.org/zap"
)

var (
	// ErrModifiedOnDisk is returned by Commit when the file changed after Load.
	ErrModifiedOnDisk = errors.New("document modified on disk since it was loaded")
	// ErrBackupFailed is returned by Commit when no backup could be taken.
	// The document is left untouched.
	ErrBackupFailed = errors.New("backup failed")
)

// Document is a manuscript held in memory.
type Document struct {
	Path string
	Text string

	hash string
	mode os.FileMode
}

// CommitOptions control how a new version is written.
type CommitOptions struct {
	NoBackup  bool
	BackupDir string // Empty means next to the document
	Logger    *zap.Logger
}

// CommitResult describes what Commit did.
type CommitResult struct {
	Written bool   `json:"written"`
	Backup  string `json:"backup,omitempty"`
	Hash    string `json:"hash"`
}

// Load reads path as UTF-8 text.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reading document: %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("document %s is not valid UTF-8", path)
	}

	return &Document{
		Path: path,
		Text: string(data),
		hash: Hash(data),
		mode: info.Mode().Perm(),
	}, nil
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Hash returns the SHA-256 of the text as loaded or last committed.
func (d *Document) Hash() string {
	return d.hash
}

// Commit replaces the document on disk with text. Nothing is written when
// text equals the loaded text. The file must still match what Load read.
func (d *Document) Commit(text string, opts CommitOptions) (CommitResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if text == d.Text {
		logger.Debug("document unchanged, nothing to write", zap.String("path", d.Path))
		return CommitResult{Hash: d.hash}, nil
	}

	current, err := os.ReadFile(d.Path)
	if err != nil {
		return CommitResult{}, fmt.Errorf("re-reading document: %w", err)
	}
	if Hash(current) != d.hash {
		return CommitResult{}, fmt.Errorf("%s: %w", d.Path, ErrModifiedOnDisk)
	}

	var result CommitResult
	if !opts.NoBackup {
		backup, err := writeBackup(d.Path, opts.BackupDir, current, d.mode)
		if err != nil {
			return CommitResult{}, fmt.Errorf("%w, document not written: %w", ErrBackupFailed, err)
		}
		result.Backup = backup
		logger.Info("backup written", zap.String("path", backup))
	}

	if err := writeAtomic(d.Path, []byte(text), d.mode); err != nil {
		return CommitResult{}, err
	}

	d.Text = text
	d.hash = Hash([]byte(text))
	result.Written = true
	result.Hash = d.hash
	logger.Info("document written",
		zap.String("path", d.Path),
		zap.Int("bytes", len(text)),
		zap.String("sha256", d.hash))
	return result, nil
}

// writeAtomic writes data to a temp file in the same directory and renames it
// over path.
func writeAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if mode != 0 {
		if err := os.Chmod(tmpPath, mode); err != nil {
			return fmt.Errorf("setting permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return nil
}
