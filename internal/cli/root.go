// Package cli holds the inspectd command surface.
package cli

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inspectd/internal/store"
)

var (
	dbPath    string
	redisAddr string
	timezone  string
)

var rootCmd = &cobra.Command{
	Use:           "inspectd",
	Short:         "Highly available inspection task scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbPath, "db", "inspectd.db", "SQLite DB path")
	pf.StringVar(&redisAddr, "redis", "localhost:6379", "redis address for the lease lock store (empty for in-process locks)")
	pf.StringVar(&timezone, "tz", "Asia/Shanghai", "IANA timezone for live scheduling")
	rootCmd.AddCommand(serveCmd, recoverCmd, backfillCmd)
}

// openRepo opens the task/record store. Caller closes the returned DB.
func openRepo() (*sql.DB, store.Repository, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer
	if err := store.EnsureSchema(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, store.NewSQLiteRepo(db), nil
}

func loadLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// confirm asks the operator a y/N question on stdin.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s (y/N): ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}
