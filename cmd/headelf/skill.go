package main

import (
	"context"
	"fmt"
	"os"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/headelf/headelf/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Inspect executive intelligence skills",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered skills",
	Long: `List the skills found under the configured skill directories and installed
extensions, sorted by ID.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		format := getOutputFormat(cmd)
		category, _ := cmd.Flags().GetString("category")

		registry := loadSkillRegistry(ctx)
		var list []*skills.Skill
		if category != "" {
			list = registry.ByCategory(category)
		} else {
			list = registry.List()
		}

		if format != OutputTable {
			if err := writeStructured(os.Stdout, format, list); err != nil {
				presenter.Error(err, "failed to render skills")
				os.Exit(1)
			}
			return
		}
		if len(list) == 0 {
			presenter.Info("No skills found")
			return
		}
		rows := make([][]string, 0, len(list))
		for _, s := range list {
			rows = append(rows, []string{s.ID, s.Name, s.Category, truncate(s.Description, 60)})
		}
		presenter.Table([]string{"ID", "NAME", "CATEGORY", "DESCRIPTION"}, rows)
		presenter.Info(fmt.Sprintf("\n%d skill(s) in %d categories", len(list), len(registry.Categories())))
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show a skill and its instructions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		skill, ok := loadSkillRegistry(cmd.Context()).Get(args[0])
		if !ok {
			presenter.Error(errors.Errorf("no skill with id %s", args[0]), "skill not found")
			os.Exit(1)
		}

		presenter.Section(skill.Name)
		presenter.Field("ID", skill.ID)
		presenter.Field("Category", skill.Category)
		if skill.Description != "" {
			presenter.Field("Description", skill.Description)
		}
		presenter.Field("Directory", skill.Directory)
		if presenter.IsQuiet() {
			return
		}
		presenter.Separator()
		fmt.Fprintln(os.Stdout, skill.Content)
	},
}

func init() {
	skillListCmd.Flags().String("category", "", "Only skills in this category")
	addOutputFlag(skillListCmd)
	skillCmd.AddCommand(withTracing(skillListCmd))
	skillCmd.AddCommand(withTracing(skillShowCmd))
}

// loadSkillRegistry builds the registry from configuration. Skills that fail
// to load are logged and left out.
func loadSkillRegistry(ctx context.Context) *skills.Registry {
	registry := skills.NewRegistry(
		skills.WithSkillDirs(cfg.SkillDirs()...),
		skills.WithExtensionsDir(mustOpenStore().Paths().Extensions),
	)
	if err := registry.Load(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("some skills could not be loaded")
	}
	return registry
}
