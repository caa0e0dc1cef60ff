// Package cmd holds the bookswap command line: the API server plus the
// schema and key maintenance commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewpaige1/bookswap-api/config"
)

var (
	env    config.Environment
	logger *zap.Logger
)

var RootCmd = cobra.Command{
	Use:   "bookswap",
	Short: "Book trading marketplace API",
	Long:  "List books, propose trades and swap books with other readers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		var err error
		if env, err = config.Load(); err != nil {
			return err
		}
		logger, err = config.NewLogger(env)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
	// Running bare starts the server
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
