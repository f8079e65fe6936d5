package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/moneta/internal/entrypoint"
)

func newServeCommand(e *env, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default if no command given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(e.cfg, version, e.log)
		},
	}
}
