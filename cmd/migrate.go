package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/andrewpaige1/bookswap-api/config"
)

func init() {
	RootCmd.AddCommand(&MigrateCommand)
}

var MigrateCommand = cobra.Command{
	Use:   "migrate",
	Short: "Migrate the database schema",
	Long:  "Create or update the tables of every model, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.Open(env.DBDriver, env.DBURL, gormlogger.Info)
		if err != nil {
			return err
		}
		if err := config.Migrate(db); err != nil {
			return err
		}

		logger.Info("Database migrated", zap.String("driver", env.DBDriver))
		return nil
	},
}
