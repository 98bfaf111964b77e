package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/joshu-sajeev/jobtracker/internal/dto"
	"github.com/spf13/cobra"
)

func MigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if b.Migrate == nil {
					return fmt.Errorf("migrations are not available")
				}
				if err := b.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func SubmitCmd(open Opener) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit new jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				jobs := make([]dto.JobResponseDTO, 0, count)
				for range count {
					j, err := b.Service.SubmitJob(ctx)
					if err != nil {
						return fmt.Errorf("submit job: %w", err)
					}
					jobs = append(jobs, *j)
				}
				return printJSON(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of jobs to submit")
	return cmd
}

func JobsCmd(open Opener) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				resp, err := b.Service.ListJobs(ctx, page, limit)
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "Jobs per page")
	return cmd
}

func JobCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				j, err := b.Service.GetJob(ctx, id)
				if err != nil {
					return fmt.Errorf("get job %d: %w", id, err)
				}
				return printJSON(cmd.OutOrStdout(), j)
			})
		},
	}
}

func TransactionsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:     "transactions <jobId>",
		Aliases: []string{"txs"},
		Short:   "Show the attempt history of a job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				txs, err := b.Service.ListTransactions(ctx, id)
				if err != nil {
					return fmt.Errorf("list transactions of job %d: %w", id, err)
				}
				return printJSON(cmd.OutOrStdout(), txs)
			})
		},
	}
}

func StatsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				stats, err := b.Service.QueueStats(ctx)
				if err != nil {
					return fmt.Errorf("queue stats: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return uint(id), nil
}
