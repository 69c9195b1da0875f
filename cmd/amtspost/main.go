package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amtspost/amtspost/internal/analyzer"
	"github.com/amtspost/amtspost/internal/config"
	"github.com/amtspost/amtspost/internal/history"
	"github.com/amtspost/amtspost/internal/ingest"
	"github.com/amtspost/amtspost/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	cfg *config.Config
)

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "amtspost",
		Short: "Amtspost - how urgent is this letter?",
		Long: `Amtspost reads German letters from authorities, courts and creditors and
tells you how urgently they need your attention.

Every keyword is weighed in its context: a seizure that "wurde aufgehoben"
does not count, a reminder with a three-day deadline counts more. Letters
are analyzed locally and never stored; the optional history keeps only the
verdicts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := cfg.Logging.Level
			if cmd.Flags().Changed("log-level") {
				level = logLevel
			}
			jsonOutput := cfg.Logging.JSON || logJSON
			logging.InitWriter(os.Stderr, jsonOutput, logging.ParseLevel(level))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.amtspost/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(highlightCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long:  "Create ~/.amtspost/config.yaml with every default filled in, ready to edit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(out io.Writer, force bool) error {
	configPath := resolveConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if err := config.Save(configPath, config.Default()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "✅ Configuration saved to: %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Run 'amtspost analyze brief.pdf' to check a letter")
	fmt.Fprintln(out, "  2. Run 'amtspost serve' for the browser interface")
	fmt.Fprintln(out, "  3. Fill in the inbox and notify sections to watch your mailbox")
	return nil
}

// openStore returns nil without error when history is disabled.
func openStore() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func newAnalyzer() *analyzer.Analyzer {
	return analyzer.New(cfg.Analysis)
}

// readLetter reads a letter from path, or from stdin when path is "" or "-".
func readLetter(path string, stdin io.Reader) (source, text string, err error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return "stdin", string(raw), nil
	}

	doc, err := ingest.ParseFile(path)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return "", "", fmt.Errorf("%s contains no text", path)
	}
	return path, doc.Text, nil
}
