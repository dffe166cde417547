package cli

import (
	"github.com/spf13/cobra"

	"github.com/anmolg1997/kg-rag/internal/db"
	"github.com/anmolg1997/kg-rag/internal/util"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := db.Migrate(util.GetEnv("DATABASE_URL")); err != nil {
		return err
	}

	cmd.Println("Migrations applied.")
	return nil
}
