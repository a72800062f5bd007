package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assistanthub/internal/archive"
	"assistanthub/internal/config"

	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of AssistantHub data (database + config)",
		Long: `Creates a compressed .tar.gz archive containing the SQLite database
and configuration file. The backup is timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			dbPath := loadConfig().General.DBPath

			files := snapshotFiles(dbPath, cfgPath)
			if len(files) == 0 {
				return fmt.Errorf("no files to backup (db: %s, config: %s)", dbPath, cfgPath)
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("assistanthub-backup-%s.tar.gz", ts))
			}

			if err := archive.Create(outputPath, files); err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(files))
			for _, f := range files {
				var size int64
				if info, err := os.Stat(f); err == nil {
					size = info.Size()
				}
				fmt.Printf("  - %s (%s)\n", filepath.Base(f), humanSize(size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.assistanthub/backups/assistanthub-backup-<timestamp>.tar.gz)")
	return cmd
}

// snapshotFiles lists the files a backup should carry: the database
// with its WAL and SHM sidecars, and the config file. Missing files
// are simply left out.
func snapshotFiles(dbPath, cfgPath string) []string {
	var files []string
	if _, err := os.Stat(dbPath); err == nil {
		files = append(files, dbPath)
		// WAL and SHM files carry unflushed writes.
		for _, suffix := range []string{"-wal", "-shm"} {
			if _, err := os.Stat(dbPath + suffix); err == nil {
				files = append(files, dbPath+suffix)
			}
		}
	}
	if _, err := os.Stat(cfgPath); err == nil {
		files = append(files, cfgPath)
	}
	return files
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore AssistantHub data from a backup archive",
		Long: `Restores the SQLite database and configuration file from a .tar.gz
backup archive created by 'assistanthub backup'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: assistanthub restore <file.tar.gz>")
			}

			cfgPath := resolveConfigPath()
			dbPath := loadConfig().General.DBPath

			if !force && anyExists(dbPath, cfgPath) {
				fmt.Printf("WARNING: This will overwrite existing data.\n")
				fmt.Printf("  Database: %s\n", dbPath)
				fmt.Printf("  Config:   %s\n", cfgPath)
				fmt.Printf("Use --force to skip this warning.\n")
				return fmt.Errorf("restore aborted (use --force to proceed)")
			}

			restored, err := archive.Extract(inputPath, restoreTarget(dbPath, cfgPath))
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", inputPath)
			fmt.Printf("Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// restoreTarget maps archive entry names back to their live locations.
// Unrecognized entries land next to the config file.
func restoreTarget(dbPath, cfgPath string) func(name string) string {
	return func(name string) string {
		switch {
		case name == "config.json":
			return cfgPath
		case strings.HasSuffix(name, ".db"):
			return dbPath
		case strings.HasSuffix(name, ".db-wal"):
			return dbPath + "-wal"
		case strings.HasSuffix(name, ".db-shm"):
			return dbPath + "-shm"
		default:
			return filepath.Join(filepath.Dir(cfgPath), name)
		}
	}
}

func anyExists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

func humanSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
