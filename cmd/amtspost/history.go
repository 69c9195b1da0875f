package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/urgency"
)

func historyCmd() *cobra.Command {
	var (
		limit      int
		deleteID   string
		deleteTier string
		showID     string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or prune stored analyses",
		Long: `List the most recent analyses stored in the history database.

Only verdicts are stored: tier, score, category, deadline and the matched
keywords. The letter text itself is never written to disk.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("history is disabled (history.enabled: false)")
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case deleteID != "":
				if err := store.Delete(deleteID); err != nil {
					return err
				}
				fmt.Fprintf(out, "🗑️  Deleted %s\n", deleteID)
				return nil
			case deleteTier != "":
				tier := urgency.Tier(deleteTier)
				switch tier {
				case urgency.TierRed, urgency.TierYellow, urgency.TierGreen:
				default:
					return fmt.Errorf("invalid tier %q (use red, yellow or green)", deleteTier)
				}
				n, err := store.DeleteByTier(tier)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "🗑️  Deleted %d analyses\n", n)
				return nil
			case showID != "":
				return showRecord(out, store, showID, jsonOut)
			}
			return listHistory(out, store, limit, jsonOut)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of analyses to show")
	cmd.Flags().StringVar(&showID, "show", "", "Show one analysis with its keywords")
	cmd.Flags().StringVar(&deleteID, "delete", "", "Delete the analysis with this id")
	cmd.Flags().StringVar(&deleteTier, "delete-tier", "", "Delete all analyses of a tier")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("delete", "delete-tier", "show")

	return cmd
}

func listHistory(out io.Writer, store *history.Store, limit int, jsonOut bool) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	records, err := store.Recent(limit)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(out, records)
	}

	st, err := store.Stats()
	if err != nil {
		return err
	}
	printStats(out, st)
	fmt.Fprintln(out)
	if len(records) == 0 {
		fmt.Fprintln(out, "No analyses stored yet.")
		return nil
	}
	printRecords(out, records)
	return nil
}

func showRecord(out io.Writer, store *history.Store, id string, jsonOut bool) error {
	record, err := store.Get(id)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(out, record)
	}
	printRecords(out, []history.Record{*record})
	fmt.Fprintln(out, record.Summary)
	for _, m := range record.Matches {
		mark := "●"
		if m.Neutralized {
			mark = "○"
		}
		fmt.Fprintf(out, "  %s %s (%s, %d) %s\n", mark, m.Keyword, m.Tier, m.Weight, m.Reason)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
