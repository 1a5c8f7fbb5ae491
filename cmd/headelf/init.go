package main

import (
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory layout",
	Long: `Create data/ and its decisions, contexts, analytics and extensions
subdirectories under the repository root, together with a default
data/.gitignore. Running it again is safe: existing files are left alone.`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		store := mustOpenStore()
		paths := store.Paths()

		presenter.Success("Initialized decision store")
		presenter.Field("Root", paths.Root)
		presenter.Field("Data", paths.Data)
		presenter.Field("Git audit", cfg.Git.Enabled)
		if !cfg.Git.Enabled {
			presenter.Warning("Git auditing is off. Decisions will not be committed.")
		}
	},
}
