// Package cli implements jobctl, an operator tool that talks to the job
// store and queue directly.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joshu-sajeev/jobtracker/internal/job"
	"github.com/spf13/cobra"
)

// Backend is what the commands run against.
type Backend struct {
	Service job.JobServiceInterface
	Migrate func(ctx context.Context) error
	Close   func()
}

// Opener connects a Backend. It runs once per command invocation.
type Opener func(ctx context.Context) (*Backend, error)

func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Inspect and feed the job tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		MigrateCmd(open),
		SubmitCmd(open),
		JobsCmd(open),
		JobCmd(open),
		TransactionsCmd(open),
		StatsCmd(open),
	)
	return root
}

// withBackend opens the backend, runs fn and closes it again.
func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := open(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(ctx, b)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
