package main

import (
	"context"
	"fmt"
	"os"

	"github.com/headelf/headelf/pkg/executive"
	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Inspect and update per-user context",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var contextShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's stored context",
	Long: `Show a user's stored context. With --type, also show the user's most recent
decisions of that type and their learning patterns, as handed to executors.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format := getOutputFormat(cmd)
		decisionType, _ := cmd.Flags().GetString("type")

		out, err := loadContext(ctx, mustOpenStore(), args[0], decisionType)
		if err != nil {
			presenter.Error(err, "failed to read user context")
			os.Exit(1)
		}
		if out == nil {
			presenter.Error(errors.Errorf("no context for user %s", args[0]), "user context not found")
			os.Exit(1)
		}

		if format == OutputTable {
			format = OutputYAML
		}
		if err := writeStructured(os.Stdout, format, out); err != nil {
			presenter.Error(err, "failed to render user context")
			os.Exit(1)
		}
	},
}

var contextUpdateCmd = &cobra.Command{
	Use:   "update <user-id>",
	Short: "Merge keys into a user's context",
	Long: `Merge top-level keys into a user's context, creating it if needed. Values
given with --set are parsed as JSON when possible, so --set decision_count=3
stores a number and --set 'organization_profile={"industry":"retail"}' an object.
--file merges a JSON object read from a file, or stdin with --file -.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		pairs, _ := cmd.Flags().GetStringArray("set")
		file, _ := cmd.Flags().GetString("file")

		updates := persistence.UserContext{}
		if file != "" {
			obj, err := readJSONObject(file, os.Stdin)
			if err != nil {
				presenter.Error(err, "failed to read context updates")
				os.Exit(1)
			}
			for k, v := range obj {
				updates[k] = v
			}
		}
		kv, err := parseKeyValues(pairs)
		if err != nil {
			presenter.Error(err, "invalid --set value")
			os.Exit(1)
		}
		for k, v := range kv {
			updates[k] = v
		}
		if len(updates) == 0 {
			presenter.Error(errors.New("nothing to update"), "pass --set or --file")
			os.Exit(1)
		}

		if err := mustOpenStore().UpdateUserContext(ctx, args[0], updates); err != nil {
			presenter.Error(err, "failed to update user context")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Updated context for %s (%d key(s))", args[0], len(updates)))
	},
}

func init() {
	contextShowCmd.Flags().String("type", "", "Include recent decisions of this type")
	addOutputFlag(contextShowCmd)
	contextUpdateCmd.Flags().StringArray("set", nil, "Key to set as key=value, repeatable")
	contextUpdateCmd.Flags().String("file", "", "JSON object to merge, or - for stdin")

	contextCmd.AddCommand(withTracing(contextShowCmd))
	contextCmd.AddCommand(withTracing(contextUpdateCmd))
}

// loadContext returns the user's context, or the relevant context for
// decisionType when it is set. It returns nil when the user has no context.
func loadContext(ctx context.Context, store executive.Store, userID, decisionType string) (any, error) {
	if decisionType == "" {
		uc, err := store.GetUserContext(ctx, userID)
		if err != nil || uc == nil {
			return nil, err
		}
		return uc, nil
	}

	rc, err := executive.NewRecorder(store).GetRelevantContext(ctx, userID, decisionType)
	if err != nil {
		return nil, err
	}
	if rc.UserContext == nil && len(rc.RecentSimilarDecisions) == 0 {
		return nil, nil
	}
	return rc, nil
}
