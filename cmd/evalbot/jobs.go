package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doublevcodes/bot/internal/config"
	"github.com/doublevcodes/bot/internal/storage"
	"github.com/doublevcodes/bot/internal/storage/sqlite"
)

var (
	jobsUserFilter   string
	jobsStatusFilter string
	jobsLimitFlag    int
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job", "j"},
	Short:   "Inspect evaluation job history",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent evaluation jobs",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job (id prefixes are accepted)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage counters",
	RunE:  runJobsStats,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd, jobsStatsCmd)

	jobsListCmd.Flags().StringVar(&jobsUserFilter, "user", "", "Filter by user id")
	jobsListCmd.Flags().StringVar(&jobsStatusFilter, "status", "", "Filter by status (success, failed)")
	jobsListCmd.Flags().IntVar(&jobsLimitFlag, "limit", 20, "Max jobs to show")
}

func openStore() (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func runJobsList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := storage.JobListOptions{
		UserID: jobsUserFilter,
		Status: storage.JobStatus(jobsStatusFilter),
		Limit:  jobsLimitFlag,
	}

	jobs, err := store.ListJobs(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	fmt.Printf("%-10s %-14s %-8s %-8s %-6s %-5s %s\n", "ID", "USER", "COMMAND", "STATUS", "CODE", "ROUND", "FINISHED")
	fmt.Println(strings.Repeat("─", 70))

	for _, j := range jobs {
		code := "-"
		if j.ReturnCode != nil {
			code = fmt.Sprintf("%d", *j.ReturnCode)
		}

		user := j.UserID
		if len(user) > 12 {
			user = user[:12] + ".."
		}

		fmt.Printf("%-10s %-14s %-8s %-8s %-6s %-5d %s\n",
			j.ID[:8], user, j.Command, j.Status, code, j.Round, timeAgo(j.FinishedAt))
	}

	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := store.GetJob(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Job:      %s\n", job.ID)
	fmt.Printf("User:     %s\n", job.UserID)
	fmt.Printf("Channel:  %s\n", job.ChannelID)
	fmt.Printf("Command:  %s\n", job.Command)
	fmt.Printf("Round:    %d\n", job.Round)
	fmt.Printf("Status:   %s\n", job.Status)
	if job.ReturnCode != nil {
		fmt.Printf("Code:     %d\n", *job.ReturnCode)
	} else {
		fmt.Printf("Code:     (none - service failure)\n")
	}
	fmt.Printf("Started:  %s\n", job.StartedAt.Format(time.RFC3339))
	fmt.Printf("Finished: %s\n", job.FinishedAt.Format(time.RFC3339))
	return nil
}

func runJobsStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counters, err := store.Counters(context.Background())
	if err != nil {
		return err
	}

	if len(counters) == 0 {
		fmt.Println("No counters recorded.")
		return nil
	}

	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%-32s %d\n", name, counters[name])
	}
	return nil
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
