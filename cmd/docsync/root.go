package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/docsync"
)

var (
	verbose bool
	rootDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Keeps open documents in sync with their files",
	Long: `docsync saves edits after a short pause and reloads documents
changed by other programs, without mistaking its own writes for such changes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Workspace root (default: nearest workspace above the current directory)")
}

// workspaceRoot returns --root, or the nearest workspace above the current
// directory, or the current directory itself.
func workspaceRoot() (string, error) {
	if rootDir != "" {
		return filepath.Abs(rootDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, err := docsync.FindRoot(wd); err == nil {
		return found, nil
	}
	return wd, nil
}

// openEngine builds an engine for the workspace, applying docsync.yaml
// before the command's own options.
func openEngine(extra ...docsync.Option) (*docsync.Engine, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}

	fileOpts, err := docsync.LoadConfig(filepath.Join(root, docsync.ConfigFileName))
	if err != nil {
		return nil, err
	}

	opts := []docsync.Option{docsync.WithLogger(slog.Default())}
	opts = append(opts, fileOpts...)
	opts = append(opts, extra...)

	slog.Debug("opening workspace", "root", root)
	return docsync.New(root, opts...)
}
