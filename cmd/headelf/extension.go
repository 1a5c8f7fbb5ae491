package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var extensionCmd = &cobra.Command{
	Use:   "extension",
	Short: "Manage extension repositories",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var extensionAddCmd = &cobra.Command{
	Use:   "add <repository>",
	Short: "Install or update an extension repository",
	Long: `Clone an extension repository into data/extensions/<name>, or pull it if it
is already installed, and record it in the extension manifest. With --version
the given tag, branch or commit is checked out.

Examples:
  headelf extension add https://github.com/acme/finance-pack.git
  headelf extension add https://github.com/acme/finance-pack.git --version v1.2.0`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ref, _ := cmd.Flags().GetString("version")

		name := persistence.ExtensionName(args[0])
		if !mustOpenStore().RegisterExtension(ctx, args[0], ref) {
			presenter.Error(errors.Errorf("could not install %s", args[0]), "failed to register extension")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Extension %s registered", name))
	},
}

var extensionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed extensions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		format := getOutputFormat(cmd)

		extensions, err := mustOpenStore().GetInstalledExtensions(ctx)
		if err != nil {
			presenter.Error(err, "failed to read extension manifest")
			os.Exit(1)
		}
		if format != OutputTable {
			if err := writeStructured(os.Stdout, format, extensions); err != nil {
				presenter.Error(err, "failed to render extensions")
				os.Exit(1)
			}
			return
		}

		if len(extensions) == 0 {
			presenter.Info("No extensions installed")
			return
		}
		names := make([]string, 0, len(extensions))
		for name := range extensions {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			e := extensions[name]
			version := e.Version
			if version == "" {
				version = "-"
			}
			rows = append(rows, []string{name, version, e.InstalledAt, e.Repository})
		}
		presenter.Table([]string{"NAME", "VERSION", "INSTALLED", "REPOSITORY"}, rows)
	},
}

func init() {
	extensionAddCmd.Flags().String("version", "", "Tag, branch or commit to check out")
	addOutputFlag(extensionListCmd)

	extensionCmd.AddCommand(withTracing(extensionAddCmd))
	extensionCmd.AddCommand(withTracing(extensionListCmd))
}
