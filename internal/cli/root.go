package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusnotes/notes-admin/internal/cli/commands"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "notes-admin",
	Short: "Notes admin - operator tooling for the notes admin panel",
	Long: `Notes admin CLI - prepare the admin panel database.

Seeds departments, semesters, subjects and admin accounts from a YAML file,
and creates or promotes admin accounts for the dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notes-admin version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewSeedCmd())
	rootCmd.AddCommand(commands.NewCreateAdminCmd())
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
