package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/inbox"
	"github.com/amtspost/amtspost/internal/notify"
)

func monitorCmd() *cobra.Command {
	var (
		days        int
		watch       bool
		sendNotices bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Analyze letters that arrive by e-mail",
		Long: `Connect to your mailbox via IMAP and analyze letters from the configured senders.

This command will:
- Fetch e-mails from the last N days (only from inbox.senders, if set)
- Analyze each one, skipping e-mails already in the history
- Store the verdicts in the history (if enabled)
- Send an alert for urgent letters (with --notify)
- Move analyzed e-mails to the archive folder (if inbox.auto_archive is set)

Use --watch to keep running and analyze new e-mails as they arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cmd.OutOrStdout(), days, watch, sendNotices)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Number of days to look back")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep watching for new e-mails")
	cmd.Flags().BoolVar(&sendNotices, "notify", false, "Send e-mail alerts for urgent letters")

	return cmd
}

// letterProcessor analyzes inbox letters and fans the results out to the
// history store and the alert sender.
type letterProcessor struct {
	out      io.Writer
	analyzer *analyzer.Analyzer
	store    *history.Store // nil when history is disabled
	sender   *notify.Sender // nil without --notify
	archived []uint32
}

func (p *letterProcessor) process(ctx context.Context, letter inbox.Letter) error {
	if p.store != nil {
		seen, err := p.store.HasSource(letter.Source())
		if err != nil {
			return err
		}
		if seen {
			// Seen letters stay queued for archiving.
			slog.Debug("letter already analyzed", "source", letter.Source())
			p.archived = append(p.archived, letter.UID)
			return nil
		}
	}

	report, err := p.analyzer.Analyze(letter.Source(), letter.Text())
	if errors.Is(err, analyzer.ErrTooShort) {
		slog.Info("skipping letter without enough text", "source", letter.Source())
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(p.out, "✉️  %s  %s  <%s>\n", letter.ReceivedAt.Local().Format("2006-01-02 15:04"), letter.Subject, letter.From)
	printReport(p.out, report, false)
	fmt.Fprintln(p.out)

	if p.store != nil {
		if err := p.store.Add(report.Record()); err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}
	}
	if p.sender != nil {
		sent, err := p.sender.Notify(ctx, report)
		if err != nil {
			slog.Error("failed to send alert", "id", report.ID, "error", err)
		} else if sent {
			fmt.Fprintf(p.out, "📣 Alert sent for %s\n\n", letter.Subject)
		}
	}
	p.archived = append(p.archived, letter.UID)
	return nil
}

func runMonitor(out io.Writer, days int, watch, sendNotices bool) error {
	if err := cfg.ValidateInbox(); err != nil {
		fmt.Fprintln(out, "📧 Inbox monitoring is not configured.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To enable inbox monitoring, add the following to your config.yaml:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "inbox:")
		fmt.Fprintln(out, "  enabled: true")
		fmt.Fprintln(out, "  provider: gmail")
		fmt.Fprintln(out, "  email: your-email@gmail.com")
		fmt.Fprintln(out, "  password: your-app-password  # Use an App Password, not your main password")
		fmt.Fprintln(out, "  senders: [stadtkasse.de, finanzamt.de]  # optional")
		return err
	}

	proc := &letterProcessor{out: out, analyzer: newAnalyzer()}

	if sendNotices {
		if err := cfg.ValidateNotify(); err != nil {
			return fmt.Errorf("invalid notify config: %w", err)
		}
		proc.sender = notify.NewSender(cfg.Notify)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		proc.store = store
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(out, "\nShutting down...")
		cancel()
	}()

	monitor := inbox.NewMonitor(cfg.Inbox)
	if err := monitor.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to inbox: %w", err)
	}
	defer monitor.Disconnect()

	fmt.Fprintf(out, "📬 Checking %s for letters (last %d days)...\n\n", cfg.Inbox.Folder, days)

	letters, err := monitor.FetchRecentLetters(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to fetch emails: %w", err)
	}
	if len(letters) == 0 {
		fmt.Fprintln(out, "No new letters found.")
	}

	for _, letter := range letters {
		if err := proc.process(ctx, letter); err != nil {
			slog.Error("failed to process letter", "source", letter.Source(), "error", err)
		}
	}
	if err := archive(monitor, proc); err != nil {
		slog.Warn("failed to archive letters", "error", err)
	}

	if !watch {
		return nil
	}

	fmt.Fprintln(out, "👀 Watching for new letters (press Ctrl+C to stop)...")
	err = monitor.WatchForNewLetters(ctx, func(letter inbox.Letter) {
		if err := proc.process(ctx, letter); err != nil {
			slog.Error("failed to process letter", "source", letter.Source(), "error", err)
			return
		}
		if err := archive(monitor, proc); err != nil {
			slog.Warn("failed to archive letters", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func archive(monitor *inbox.Monitor, proc *letterProcessor) error {
	if !cfg.Inbox.AutoArchive || len(proc.archived) == 0 {
		return nil
	}
	if err := monitor.EnsureFolderExists(cfg.Inbox.ArchiveFolder); err != nil {
		return err
	}
	if err := monitor.ArchiveLetters(proc.archived); err != nil {
		return err
	}
	proc.archived = nil
	return nil
}
