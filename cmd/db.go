package cmd

import (
	"github.com/emrgen/wikinote/internal/config"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			config.ConfigureLogging(cfg.App)

			db, err := config.GetDb(cfg)
			if err != nil {
				return err
			}
			if err := model.Migrate(db); err != nil {
				return err
			}

			color.Green("database migrated")
			return nil
		},
	}

	return command
}
