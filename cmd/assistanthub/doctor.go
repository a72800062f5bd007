package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"assistanthub/internal/config"
	"assistanthub/internal/store"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your AssistantHub installation",
		Long: `Verifies that AssistantHub's configuration, database, and configured
webhooks are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("AssistantHub Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'assistanthub init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Database writable
			if err := checkDatabase(cfg.General.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.General.DBPath)
				passed++
			}

			// 4. Web port available
			if err := checkPort(cfg.Web.Port); err != nil {
				printWarn("Web port", fmt.Sprintf("port %d may be in use: %v", cfg.Web.Port, err))
				warned++
			} else {
				printPass("Web port", fmt.Sprintf(":%d available", cfg.Web.Port))
				passed++
			}

			// 5. Webhook reachability for every configured assistant
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			p, f, w := checkWebhooks(ctx, cfg.General.DBPath)
			passed += p
			failed += f
			warned += w

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running AssistantHub.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nAssistantHub should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! AssistantHub is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

// checkWebhooks probes each configured assistant's endpoint with a HEAD
// request. Any HTTP response counts as reachable; only connection
// failures warn.
func checkWebhooks(ctx context.Context, dbPath string) (passed, failed, warned int) {
	db, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		printWarn("Assistants", fmt.Sprintf("cannot open store: %v", err))
		return 0, 0, 1
	}
	defer db.Close()

	list, err := db.ListAssistants(ctx)
	if err != nil {
		printWarn("Assistants", fmt.Sprintf("cannot list: %v", err))
		return 0, 0, 1
	}
	if len(list) == 0 {
		printWarn("Assistants", "none configured (use the web UI or 'assistanthub seed')")
		return 0, 0, 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, a := range list {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.WebhookURL, nil)
		if err != nil {
			printFail("Webhook: "+a.Name, err.Error())
			failed++
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			printWarn("Webhook: "+a.Name, fmt.Sprintf("unreachable: %v", err))
			warned++
			continue
		}
		resp.Body.Close()
		printPass("Webhook: "+a.Name, fmt.Sprintf("%s (%d)", a.WebhookURL, resp.StatusCode))
		passed++
	}
	return passed, failed, warned
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
