package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amtspost/amtspost/internal/normalize"
	"github.com/amtspost/amtspost/internal/urgency"
)

func analyzeCmd() *cobra.Command {
	var (
		jsonOut      bool
		save         bool
		verbose      bool
		deadlineDays int
	)

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze a letter and print its urgency",
		Long: `Analyze a letter from a .txt, .md, .pdf, .html or .eml file, or from stdin.

PDFs need a text layer; scanned letters must be run through OCR first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var deadline *int
			if cmd.Flags().Changed("deadline-days") {
				deadline = &deadlineDays
			}
			return runAnalyze(cmd, firstArg(args), deadline, jsonOut, save, verbose)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full report as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Store the verdict (without the letter text) in the history")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every keyword with its reason")
	cmd.Flags().IntVar(&deadlineDays, "deadline-days", 0, "Days until the deadline, overriding the one found in the text")

	return cmd
}

func runAnalyze(cmd *cobra.Command, path string, deadline *int, jsonOut, save, verbose bool) error {
	source, text, err := readLetter(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	report, err := newAnalyzer().AnalyzeWithDeadline(source, text, deadline)
	if err != nil {
		return err
	}

	saved := false
	if save {
		store, err := openStore()
		if err != nil {
			return err
		}
		if store == nil {
			fmt.Fprintln(os.Stderr, "⚠️  History is disabled in the config; nothing saved.")
		} else {
			defer store.Close()
			if err := store.Add(report.Record()); err != nil {
				return fmt.Errorf("failed to save analysis: %w", err)
			}
			saved = true
		}
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return writeJSON(out, report)
	}

	printReport(out, report, verbose)
	if saved {
		fmt.Fprintf(out, "\n💾 Saved as %s\n", report.ID)
	}
	return nil
}

func highlightCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "highlight [file|-]",
		Short: "Print a letter with its keywords marked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, raw, err := readLetter(firstArg(args), cmd.InOrStdin())
			if err != nil {
				return err
			}
			text := normalize.Text(raw)
			h := urgency.Highlight(text)

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, struct {
					Text string `json:"text"`
					urgency.Highlights
				}{text, h})
			}
			printHighlighted(out, text, h)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print spans as JSON")

	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
