// Package cli holds the moneta command line: the web server and the
// maintenance commands that share its configuration.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrlokans/moneta/internal/config"
	"github.com/mrlokans/moneta/internal/logger"
)

// env is what every command needs before it runs.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the command tree. Without a subcommand it serves.
func NewRootCommand(version string) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "moneta",
		Short:         "Moneta library management server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.cfg = config.NewConfig()
			log, err := logger.New(e.cfg.Log)
			if err != nil {
				return err
			}
			e.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.log != nil {
				_ = e.log.Sync()
			}
		},
	}

	serve := newServeCommand(e, version)
	root.RunE = serve.RunE

	root.AddCommand(
		serve,
		newCreateLibrarianCommand(e),
		newSweepOverdueCommand(e),
	)
	return root
}
