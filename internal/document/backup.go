package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Backup is one numbered copy of a document.
type Backup struct {
	N       int       `json:"n"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// backupBase returns the directory and name prefix for path's backups.
func backupBase(path, backupDir string) (string, string) {
	dir := backupDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return dir, filepath.Base(path) + ".bak"
}

// ListBackups returns the backups of path ordered by number.
func ListBackups(path, backupDir string) ([]Backup, error) {
	dir, prefix := backupBase(path, backupDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Backup{}, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	backups := []Backup{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil || n < 1 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			N:       n,
			Path:    filepath.Join(dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].N < backups[j].N })
	return backups, nil
}

// writeBackup stores data as the next numbered backup of path.
func writeBackup(path, backupDir string, data []byte, mode os.FileMode) (string, error) {
	existing, err := ListBackups(path, backupDir)
	if err != nil {
		return "", err
	}
	next := 1
	if len(existing) > 0 {
		next = existing[len(existing)-1].N + 1
	}

	dir, prefix := backupBase(path, backupDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if mode == 0 {
		mode = 0644
	}

	backupPath := filepath.Join(dir, prefix+strconv.Itoa(next))
	f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(backupPath)
		return "", fmt.Errorf("writing backup: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(backupPath)
		return "", fmt.Errorf("syncing backup: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("closing backup: %w", err)
	}
	return backupPath, nil
}

// Restore replaces the document with backup number n. The current version is
// itself backed up first unless opts.NoBackup is set.
func Restore(path string, n int, opts CommitOptions) (CommitResult, error) {
	backups, err := ListBackups(path, opts.BackupDir)
	if err != nil {
		return CommitResult{}, err
	}

	var src string
	for _, b := range backups {
		if b.N == n {
			src = b.Path
			break
		}
	}
	if src == "" {
		return CommitResult{}, fmt.Errorf("backup %d of %s not found", n, filepath.Base(path))
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return CommitResult{}, fmt.Errorf("reading backup: %w", err)
	}

	doc, err := Load(path)
	if err != nil {
		return CommitResult{}, err
	}
	if opts.Logger != nil {
		opts.Logger.Info("restoring backup", zap.String("from", src), zap.String("to", path))
	}
	return doc.Commit(string(data), opts)
}
