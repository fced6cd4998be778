package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/matsen/citefix/internal/document"
	"github.com/matsen/citefix/internal/journal"
	"github.com/spf13/cobra"
)

var restoreNoBackup bool

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupRestoreCmd.Flags().BoolVar(&restoreNoBackup, "no-backup", false, "Do not back up the current version first")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List and restore numbered backups",
	Long: `Every write keeps the previous version as <document>.bakN (N = 1, 2, ...),
beside the document or in the configured backup_dir.`,
}

var backupListCmd = &cobra.Command{
	Use:   "list [document.tex]",
	Short: "List the backups of a document",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [document.tex] <n>",
	Short: "Restore backup number n",
	Long: `Restore backup number n over the document. The current version is backed
up first, so a restore can itself be undone.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBackupRestore,
}

// BackupListResponse is the response for backup list.
type BackupListResponse struct {
	Document string            `json:"document"`
	Backups  []document.Backup `json:"backups"`
}

// RestoreResponse is the response for backup restore.
type RestoreResponse struct {
	Document string `json:"document"`
	Restored int    `json:"restored"`
	Written  bool   `json:"written"`
	Backup   string `json:"backup,omitempty"`
	RunID    string `json:"run_id,omitempty"`
}

func runBackupList(cmd *cobra.Command, args []string) error {
	ws := loadWorkspace()
	docPath := ws.documentPath(args)

	backups, err := document.ListBackups(docPath, ws.backupDir())
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	resp := BackupListResponse{Document: docPath, Backups: backups}
	if !humanOutput {
		outputJSON(resp)
		return nil
	}

	if len(backups) == 0 {
		fmt.Printf("No backups of %s\n", filepath.Base(docPath))
		return nil
	}
	fmt.Printf("Backups of %s:\n", filepath.Base(docPath))
	for _, b := range backups {
		fmt.Printf("  %3d  %s  %9s  %s\n", b.N, b.ModTime.Format("2006-01-02 15:04:05"), formatBytes(b.Size), b.Path)
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	nArg := args[len(args)-1]
	n, err := strconv.Atoi(nArg)
	if err != nil || n < 1 {
		exitWithError(ExitError, "invalid backup number %q", nArg)
	}

	ws := loadWorkspace()
	docPath := ws.documentPath(args[:len(args)-1])

	before, err := document.Load(docPath)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	res, err := document.Restore(docPath, n, document.CommitOptions{
		NoBackup:  restoreNoBackup,
		BackupDir: ws.backupDir(),
		Logger:    logger,
	})
	run := journal.Run{
		Command:    "backup restore",
		Document:   docPath,
		HashBefore: before.Hash(),
		Written:    res.Written,
		Backup:     res.Backup,
		HashAfter:  res.Hash,
		Summary:    map[string]int{"restored": n},
	}
	if err != nil {
		run.Error = err.Error()
		recordRun(ws, run, nil)
		exitWithError(exitCodeFor(err), "%v", err)
	}

	resp := RestoreResponse{
		Document: docPath,
		Restored: n,
		Written:  res.Written,
		Backup:   res.Backup,
		RunID:    recordRun(ws, run, nil),
	}
	if !humanOutput {
		outputJSON(resp)
		return nil
	}

	switch {
	case !resp.Written:
		fmt.Printf("Backup %d matches %s, nothing to restore\n", n, filepath.Base(docPath))
	case resp.Backup != "":
		fmt.Printf("Restored backup %d to %s (previous version: %s)\n", n, docPath, resp.Backup)
	default:
		fmt.Printf("Restored backup %d to %s\n", n, docPath)
	}
	return nil
}
