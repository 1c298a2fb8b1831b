package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/models"
)

// passwordEnv lets scripts pass the password without it showing up in ps
const passwordEnv = "NOTES_ADMIN_PASSWORD"

type createAdminOptions struct {
	database string
	name     string
	password string
}

// NewCreateAdminCmd creates the create-admin command
func NewCreateAdminCmd() *cobra.Command {
	var opts createAdminOptions

	cmd := &cobra.Command{
		Use:   "create-admin <email>",
		Short: "Create an admin account or promote an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv(passwordEnv)
			}
			return runCreateAdmin(cmd, args[0], opts)
		},
	}

	addDatabaseFlag(cmd, &opts.database)
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password (or set "+passwordEnv+")")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, email string, opts createAdminOptions) error {
	if opts.password == "" {
		return fmt.Errorf("a password is required: pass --password or set %s", passwordEnv)
	}

	log := cliLogger(cmd)
	cat, closeDB, err := openCatalog(opts.database, log)
	if err != nil {
		return err
	}
	defer closeDB()

	user, created, err := cat.UpsertUser(commandContext(cmd), catalog.UserCreateInput{
		Email:    email,
		Name:     opts.name,
		Password: opts.password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return err
	}

	verb := "Updated"
	if created {
		verb = "Created"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s (%s)\n", verb, user.Email, user.ID)
	return nil
}
