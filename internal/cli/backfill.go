package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"inspectd/internal/backfill"
	"inspectd/internal/domain"
)

var (
	backfillStart    string
	backfillEnd      string
	backfillTaskID   string
	backfillTaskName string
	backfillStatus   string
	backfillResult   string
	backfillDryRun   bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Insert synthetic execution records for calendar occurrences that lack one",
	RunE:  runBackfill,
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillStart, "start-date", "", "start date, YYYY-MM-DD (required)")
	f.StringVar(&backfillEnd, "end-date", "", "end date, YYYY-MM-DD (required)")
	f.StringVar(&backfillTaskID, "task-id", "", "limit to one task id")
	f.StringVar(&backfillTaskName, "task-name", "", "limit to tasks whose name contains this")
	f.StringVar(&backfillStatus, "status", domain.StatusBackfilled, "status for synthesized records")
	f.StringVar(&backfillResult, "result", "generated by backfill", "result text for synthesized records")
	f.BoolVar(&backfillDryRun, "dry-run", false, "report the gaps without writing")
	_ = backfillCmd.MarkFlagRequired("start-date")
	_ = backfillCmd.MarkFlagRequired("end-date")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	loc, err := loadLocation()
	if err != nil {
		return err
	}
	start, err := time.ParseInLocation("2006-01-02", backfillStart, loc)
	if err != nil {
		return fmt.Errorf("invalid --start-date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", backfillEnd, loc)
	if err != nil {
		return fmt.Errorf("invalid --end-date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("--end-date is before --start-date")
	}

	db, repo, err := openRepo()
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := backfill.NewFiller(repo).Run(cmd.Context(), backfill.Options{
		Start:    start,
		End:      end,
		TaskID:   backfillTaskID,
		TaskName: backfillTaskName,
		Status:   backfillStatus,
		Result:   backfillResult,
		DryRun:   backfillDryRun,
	})
	if err != nil {
		return err
	}

	total := 0
	for _, rep := range reports {
		fmt.Printf("task %s (%s): %d missing %v", rep.TaskID, rep.TaskName, len(rep.Missing), rep.Missing)
		if backfillDryRun {
			fmt.Println(" [dry run]")
		} else {
			fmt.Printf(", inserted %d\n", rep.Inserted)
		}
		total += rep.Inserted
	}
	if !backfillDryRun {
		fmt.Printf("backfill complete, %d records created\n", total)
	}
	return nil
}
