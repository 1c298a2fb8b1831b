package main

import (
	"os"

	"github.com/campusnotes/notes-admin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
