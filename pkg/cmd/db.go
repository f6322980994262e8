package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/storage"
	"github.com/yeisme/fastlink/pkg/internal/storage/db"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	dbListCmd = &cobra.Command{
		Use:   "ls",
		Short: "list all registered database types",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered database types:")

			for _, dbType := range db.GetRegisteredDBTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), " - "+string(dbType))
			}
		},
	}

	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "create or update the object record tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := storage.New(cmd.Context(), configs.GetConfig(), storage.PartDB)
			if err != nil {
				return err
			}
			defer mgr.Close()

			if err := mgr.DB.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migration done")

			return nil
		},
	}
)

// registerDBCommands 注册数据库相关命令.
func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbListCmd, dbMigrateCmd)
}
