package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/campusnotes/notes-admin/internal/catalog"
	"github.com/campusnotes/notes-admin/internal/seed"
)

type seedOptions struct {
	database string
	dryRun   bool
}

// NewSeedCmd creates the seed command
func NewSeedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load admins and academic structure from a YAML file",
		Long: `Load admins, departments, semesters and subjects from a YAML file.

Existing departments, semesters and subjects are kept. Admins listed in the
file are created, or updated with the file's name and password.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], opts)
		},
	}

	addDatabaseFlag(cmd, &opts.database)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "validate the file against a scratch in-memory database")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, opts seedOptions) error {
	log := cliLogger(cmd)

	file, err := seed.Load(path)
	if err != nil {
		return err
	}

	var (
		cat     *catalog.Service
		closeDB func()
	)
	if opts.dryRun {
		cat, closeDB, err = openScratchCatalog(log)
	} else {
		cat, closeDB, err = openCatalog(opts.database, log)
	}
	if err != nil {
		return err
	}
	defer closeDB()

	sum, err := seed.Apply(commandContext(cmd), cat, file, log)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	printSummary(cmd.OutOrStdout(), sum, opts.dryRun)
	return nil
}

func printSummary(w io.Writer, sum seed.Summary, dryRun bool) {
	if dryRun {
		fmt.Fprintln(w, "Dry run, nothing was written")
	}
	rows := []struct {
		name   string
		counts seed.Counts
	}{
		{"admins", sum.Admins},
		{"departments", sum.Departments},
		{"semesters", sum.Semesters},
		{"subjects", sum.Subjects},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s %d created, %d existing\n", r.name, r.counts.Created, r.counts.Existing)
	}
}
