package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Generate and save an analytics snapshot",
	Long: `Aggregate decisions in a time range and save the snapshot under
data/analytics/snapshots/<date>.json. The range defaults to the last 30 days.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		format := getOutputFormat(cmd)
		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")

		var tr *persistence.TimeRange
		if start != "" || end != "" {
			tr = &persistence.TimeRange{Start: start, End: end}
		}

		snapshot, err := mustOpenStore().GenerateAnalytics(ctx, tr)
		if err != nil {
			presenter.Error(err, "failed to generate analytics")
			os.Exit(1)
		}
		if err := renderAnalytics(os.Stdout, format, snapshot); err != nil {
			presenter.Error(err, "failed to render analytics")
			os.Exit(1)
		}
	},
}

func init() {
	analyticsCmd.Flags().String("start", "", "Start of the range, inclusive")
	analyticsCmd.Flags().String("end", "", "End of the range, exclusive")
	addOutputFlag(analyticsCmd)
}

func renderAnalytics(w io.Writer, format OutputFormat, s *persistence.AnalyticsSnapshot) error {
	if format != OutputTable {
		return writeStructured(w, format, s)
	}

	presenter.Section("Decision Analytics")
	presenter.Field("From", s.TimeRange.Start)
	presenter.Field("To", s.TimeRange.End)
	presenter.Field("Decisions", s.TotalDecisions)
	presenter.Field("Avg confidence", strconv.FormatFloat(s.ConfidenceMetrics.Average, 'f', 2, 64))
	if s.TotalDecisions == 0 {
		return nil
	}

	presenter.Separator()
	roles := make([][]string, 0, len(s.DecisionsByRole))
	for role, n := range s.DecisionsByRole {
		roles = append(roles, []string{role, strconv.Itoa(n)})
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i][0] < roles[j][0] })
	presenter.Table([]string{"ROLE", "DECISIONS"}, roles)

	presenter.Separator()
	areas := make([][]string, 0, len(s.MostActiveAreas))
	for _, a := range s.MostActiveAreas {
		areas = append(areas, []string{a.DecisionType, strconv.Itoa(a.Count)})
	}
	presenter.Table([]string{"DECISION TYPE", "DECISIONS"}, areas)

	presenter.Separator()
	days := make([]string, 0, len(s.TrendAnalysis.DailyCounts))
	for day := range s.TrendAnalysis.DailyCounts {
		days = append(days, day)
	}
	sort.Strings(days)
	rows := make([][]string, 0, len(days))
	for _, day := range days {
		rows = append(rows, []string{day, fmt.Sprint(s.TrendAnalysis.DailyCounts[day])})
	}
	presenter.Table([]string{"DATE", "DECISIONS"}, rows)
	return nil
}
