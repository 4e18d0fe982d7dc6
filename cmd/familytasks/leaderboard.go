package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytasks/internal/database"
	"github.com/dukerupert/familytasks/internal/leaderboard"
	"github.com/dukerupert/familytasks/internal/model"
	"github.com/dukerupert/familytasks/internal/store"
)

func newLeaderboardCommand(root *rootCommand) *cobra.Command {
	var (
		familyID int64
		date     string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print a family's weekly leaderboard",
		Long: `Print the points each child earned in the Sunday-to-Saturday week containing
--date (default today in the configured time zone).

Examples:
  familytasks leaderboard --family 1
  familytasks leaderboard --family 1 --date 2026-02-04 --limit 3 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if familyID <= 0 {
				return fmt.Errorf("--family is required")
			}
			ref := model.DateOf(time.Now().In(root.cfg.Location()))
			if date != "" {
				d, err := model.ParseDate(date)
				if err != nil {
					return err
				}
				ref = d
			}

			db, err := database.Open(root.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			agg := leaderboard.NewAggregator(store.NewFamilyStore(db), store.NewLedgerStore(db),
				root.cfg.Location(), root.logger.With("component", "leaderboard"))
			lb, err := agg.WeeklyTotals(cmd.Context(), familyID, ref, limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lb)
			}
			return printLeaderboard(cmd.OutOrStdout(), lb)
		},
	}
	cmd.Flags().Int64Var(&familyID, "family", 0, "Family id")
	cmd.Flags().StringVar(&date, "date", "", "Any date in the week, YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", leaderboard.DefaultLimit, "Maximum rows; 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printLeaderboard(w io.Writer, lb *model.Leaderboard) error {
	fmt.Fprintf(w, "Week of %s\n", lb.WeekStart)
	if len(lb.Items) == 0 {
		fmt.Fprintln(w, "No children yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tPOINTS")
	for _, e := range lb.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", e.Rank, e.Name, e.Points)
	}
	return tw.Flush()
}
