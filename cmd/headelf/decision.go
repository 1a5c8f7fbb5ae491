package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/headelf/headelf/pkg/executive"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DecisionRecordConfig holds the flags of decision record
type DecisionRecordConfig struct {
	Role         string
	DecisionType string
	Query        string
	ResultFile   string
	Confidence   float64
	UserID       string
	SessionID    string
	Context      []string
}

// NewDecisionRecordConfig creates a DecisionRecordConfig with default values
func NewDecisionRecordConfig() *DecisionRecordConfig {
	return &DecisionRecordConfig{
		Confidence: -1,
	}
}

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Record and inspect executive decisions",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var decisionRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record an executive decision",
	Long: `Record an executive decision. The executor result (recommendation, analysis,
confidence, execution_metadata) is read as a JSON object from --result, or from
stdin with --result -.

Examples:
  headelf decision record --role CTO --type technology_strategy --query "Evaluate cloud migration" --confidence 0.87
  executor | headelf decision record --role CFO --type budget --query "Q3 forecast" --result -
  headelf decision record --role CTO --type hiring --query "Platform team" --user demo_cto --context industry=retail`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getDecisionRecordConfigFromFlags(cmd)

		id, err := recordDecision(ctx, mustOpenStore(), config, os.Stdin)
		if err != nil {
			presenter.Error(err, "failed to record decision")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Decision recorded: %s", id))
	},
}

var decisionHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded decisions, newest first",
	Long: `List recorded decisions, newest first. All filters are combined; --start is
inclusive and --end exclusive. Bounds accept RFC 3339 timestamps or dates.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		filter := getHistoryFilterFromFlags(cmd)
		format := getOutputFormat(cmd)

		decisions, err := mustOpenStore().GetDecisionHistory(ctx, filter)
		if err != nil {
			presenter.Error(err, "failed to read decision history")
			os.Exit(1)
		}
		if err := renderDecisions(os.Stdout, format, decisions); err != nil {
			presenter.Error(err, "failed to render decisions")
			os.Exit(1)
		}
	},
}

var decisionShowCmd = &cobra.Command{
	Use:   "show <decision-id>",
	Short: "Show a single decision",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format := getOutputFormat(cmd)

		decision, err := mustOpenStore().GetDecision(ctx, args[0])
		if err != nil {
			presenter.Error(err, "failed to read decision")
			os.Exit(1)
		}
		if decision == nil {
			presenter.Error(errors.Errorf("no decision with id %s", args[0]), "decision not found")
			os.Exit(1)
		}

		if format != OutputTable {
			if err := writeStructured(os.Stdout, format, decision); err != nil {
				presenter.Error(err, "failed to render decision")
				os.Exit(1)
			}
			return
		}
		showDecision(os.Stdout, decision)
	},
}

var decisionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print decisions as they are recorded",
	Long:  `Print every decision recorded after the watch starts until interrupted.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		store := mustOpenStore()
		presenter.Info(fmt.Sprintf("Watching %s for new decisions. Press Ctrl+C to stop.", store.Paths().Decisions))

		err := store.WatchDecisions(ctx, func(d persistence.DecisionRecord) {
			fmt.Fprintf(os.Stdout, "%s  %-5s  %-24s  %s  %s\n",
				d.Timestamp, d.ExecutiveRole, d.DecisionType, d.ID, truncate(d.Query, 60))
		})
		if err != nil {
			presenter.Error(err, "decision watch failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewDecisionRecordConfig()
	decisionRecordCmd.Flags().String("role", "", "Executive role, e.g. CTO")
	decisionRecordCmd.Flags().String("type", "", "Decision type, e.g. technology_strategy")
	decisionRecordCmd.Flags().String("query", "", "The question the decision answers")
	decisionRecordCmd.Flags().String("result", "", "JSON file with the executor result, or - for stdin")
	decisionRecordCmd.Flags().Float64("confidence", defaults.Confidence, "Confidence between 0 and 1, overrides the result file")
	decisionRecordCmd.Flags().String("user", "", "User ID (default anonymous)")
	decisionRecordCmd.Flags().String("session", "", "Session ID (default unknown)")
	decisionRecordCmd.Flags().StringArray("context", nil, "Context entry as key=value, repeatable")
	decisionRecordCmd.MarkFlagRequired("role")
	decisionRecordCmd.MarkFlagRequired("type")
	decisionRecordCmd.MarkFlagRequired("query")

	decisionHistoryCmd.Flags().String("user", "", "Only decisions by this user")
	decisionHistoryCmd.Flags().String("type", "", "Only decisions of this type")
	decisionHistoryCmd.Flags().String("role", "", "Only decisions by this executive role")
	decisionHistoryCmd.Flags().String("start", "", "Earliest timestamp, inclusive")
	decisionHistoryCmd.Flags().String("end", "", "Latest timestamp, exclusive")
	decisionHistoryCmd.Flags().Int("limit", 0, "Maximum number of decisions (0 for all)")
	addOutputFlag(decisionHistoryCmd)
	addOutputFlag(decisionShowCmd)

	decisionCmd.AddCommand(withTracing(decisionRecordCmd))
	decisionCmd.AddCommand(withTracing(decisionHistoryCmd))
	decisionCmd.AddCommand(withTracing(decisionShowCmd))
	decisionCmd.AddCommand(decisionWatchCmd)
}

func getDecisionRecordConfigFromFlags(cmd *cobra.Command) *DecisionRecordConfig {
	config := NewDecisionRecordConfig()
	if role, err := cmd.Flags().GetString("role"); err == nil {
		config.Role = role
	}
	if decisionType, err := cmd.Flags().GetString("type"); err == nil {
		config.DecisionType = decisionType
	}
	if query, err := cmd.Flags().GetString("query"); err == nil {
		config.Query = query
	}
	if result, err := cmd.Flags().GetString("result"); err == nil {
		config.ResultFile = result
	}
	if confidence, err := cmd.Flags().GetFloat64("confidence"); err == nil {
		config.Confidence = confidence
	}
	if user, err := cmd.Flags().GetString("user"); err == nil {
		config.UserID = user
	}
	if session, err := cmd.Flags().GetString("session"); err == nil {
		config.SessionID = session
	}
	if pairs, err := cmd.Flags().GetStringArray("context"); err == nil {
		config.Context = pairs
	}
	return config
}

func getHistoryFilterFromFlags(cmd *cobra.Command) persistence.HistoryFilter {
	var filter persistence.HistoryFilter
	filter.UserID, _ = cmd.Flags().GetString("user")
	filter.DecisionType, _ = cmd.Flags().GetString("type")
	filter.ExecutiveRole, _ = cmd.Flags().GetString("role")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	if start != "" || end != "" {
		filter.DateRange = &persistence.TimeRange{Start: start, End: end}
	}
	return filter
}

// recordDecision records config through an executive.Recorder and returns
// the new decision ID.
func recordDecision(ctx context.Context, store executive.Store, config *DecisionRecordConfig, stdin io.Reader) (string, error) {
	result := map[string]any{}
	if config.ResultFile != "" {
		r, err := readJSONObject(config.ResultFile, stdin)
		if err != nil {
			return "", err
		}
		if r != nil {
			result = r
		}
	}
	if config.Confidence >= 0 {
		if config.Confidence > 1 {
			return "", errors.Errorf("confidence must be between 0 and 1, got %v", config.Confidence)
		}
		result["confidence"] = config.Confidence
	}

	execCtx, err := parseKeyValues(config.Context)
	if err != nil {
		return "", err
	}
	if config.UserID != "" {
		execCtx["user_id"] = config.UserID
	}
	if config.SessionID != "" {
		execCtx["session_id"] = config.SessionID
	}

	ctx = logger.WithFields(ctx, logrus.Fields{
		"executive_role": config.Role,
		"decision_type":  config.DecisionType,
	})
	return executive.NewRecorder(store).PersistDecisionResult(ctx, config.Role, config.DecisionType, config.Query, result, execCtx)
}

func renderDecisions(w io.Writer, format OutputFormat, decisions []persistence.DecisionRecord) error {
	if format != OutputTable {
		return writeStructured(w, format, decisions)
	}

	if len(decisions) == 0 {
		presenter.Info("No decisions found")
		return nil
	}

	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		rows = append(rows, []string{
			d.ID,
			d.Timestamp,
			d.ExecutiveRole,
			d.DecisionType,
			d.UserID,
			formatConfidence(d.Confidence),
			truncate(d.Query, 50),
		})
	}
	presenter.Table([]string{"ID", "TIMESTAMP", "ROLE", "TYPE", "USER", "CONFIDENCE", "QUERY"}, rows)
	presenter.Info(fmt.Sprintf("\n%d decision(s)", len(decisions)))
	return nil
}

// showDecision prints d field by field. Nothing is written in quiet mode.
func showDecision(w io.Writer, d *persistence.DecisionRecord) {
	if presenter.IsQuiet() {
		return
	}

	presenter.Section(fmt.Sprintf("Decision %s", d.ID))
	presenter.Field("Timestamp", d.Timestamp)
	presenter.Field("Executive role", d.ExecutiveRole)
	presenter.Field("Decision type", d.DecisionType)
	presenter.Field("Query", d.Query)
	presenter.Field("Confidence", formatConfidence(d.Confidence))
	presenter.Field("User", d.UserID)
	presenter.Field("Session", d.SessionID)
	if d.GitCommitHash != "" {
		presenter.Field("Commit", d.GitCommitHash)
	}

	for _, section := range []struct {
		title string
		body  map[string]any
	}{
		{"Recommendation", d.Recommendation},
		{"Analysis", d.Analysis},
		{"Context", d.Context},
	} {
		if len(section.body) == 0 {
			continue
		}
		presenter.Separator()
		presenter.Section(section.title)
		if err := writeStructured(w, OutputYAML, section.body); err != nil {
			logger.G(context.Background()).WithError(err).Warn("failed to render section")
		}
	}
}
