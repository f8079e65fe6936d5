package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/moneta/internal/entrypoint"
	"github.com/mrlokans/moneta/internal/tasks"
)

// SweepOverdueCommand returns every overdue borrow to the librarians. The
// server does this on login and on the housekeeping schedule; this is the
// manual trigger.
type SweepOverdueCommand struct {
	Out io.Writer
}

func NewSweepOverdueCommand() *SweepOverdueCommand {
	return &SweepOverdueCommand{Out: os.Stdout}
}

func newSweepOverdueCommand(e *env) *cobra.Command {
	c := NewSweepOverdueCommand()

	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Move every borrow past the lending period to pending returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(e)
			if err != nil {
				return err
			}
			defer app.Close()

			_, err = c.Run(cmd.Context(), app.Lending)
			return err
		},
	}
}

func (c *SweepOverdueCommand) Run(ctx context.Context, sweeper tasks.Sweeper) (int, error) {
	moved, err := tasks.Sweep(ctx, sweeper, tasks.SweepOverdueTask{})
	if err != nil {
		return moved, fmt.Errorf("sweep failed after %d books: %w", moved, err)
	}
	fmt.Fprintf(c.Out, "Returned %d overdue books\n", moved)
	return moved, nil
}

func openApp(e *env) (*entrypoint.App, error) {
	return entrypoint.NewApp(e.cfg, e.log)
}
