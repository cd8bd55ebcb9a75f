package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/videditor/jobrunner/config"
	"github.com/videditor/jobrunner/errors"
	"github.com/videditor/jobrunner/logger"
	"github.com/videditor/jobrunner/store"
)

var statusProjectID string

// StatusCmd prints queue depth per status, and a project's jobs and shorts
// when --project is given.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth, optionally one project's jobs and shorts",
	RunE:  runStatus,
}

func init() {
	StatusCmd.Flags().StringVar(&statusProjectID, "project", "",
		"show jobs and shorts for this project id")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	log, err := logger.New(cfg.NodeEnv)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, 1)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer db.Close()

	repo := store.NewRepository(db, log)

	fmt.Println("Queue:")
	for _, status := range []store.JobStatus{
		store.JobStatusQueued, store.JobStatusRunning,
		store.JobStatusSucceeded, store.JobStatusFailed, store.JobStatusCanceled,
	} {
		count, err := repo.CountJobsByStatus(ctx, status)
		if err != nil {
			return errors.Wrapf(err, "failed to count %s jobs", status)
		}
		fmt.Printf("  %-10s %d\n", status, count)
	}

	if statusProjectID == "" {
		return nil
	}

	jobs, err := repo.ListJobsByProject(ctx, statusProjectID)
	if err != nil {
		return errors.Wrap(err, "failed to list project jobs")
	}
	fmt.Printf("\nJobs for project %s:\n", statusProjectID)
	for _, job := range jobs {
		fmt.Printf("  %s  %-13s %-9s %s\n",
			job.ID, job.Type, job.Status, job.CreatedAt.Format(time.RFC3339))
	}

	shorts, err := repo.ListShortsByProject(ctx, statusProjectID)
	if err != nil {
		return errors.Wrap(err, "failed to list project shorts")
	}
	fmt.Printf("\nShorts for project %s:\n", statusProjectID)
	for _, s := range shorts {
		fmt.Printf("  %s  %-9s %s\n", s.ID, s.Status, s.Title)
	}

	return nil
}
