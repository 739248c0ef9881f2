package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/docsync/pkg/git"
)

var (
	logLimit int
)

var logCmd = &cobra.Command{
	Use:   "log [path]",
	Short: "Show the saves of a document",
	Long:  `List the commit subjects recorded for a document of a versioned workspace, newest first.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return fmt.Errorf("failed to resolve workspace: %w", err)
		}
		ctx := context.Background()

		client := git.NewClient(root, git.DefaultLockName, slog.Default())
		if !client.IsRepo(ctx) {
			return fmt.Errorf("failed to read history: %s is not a git repository", root)
		}

		path := args[0]
		if filepath.IsAbs(path) {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return fmt.Errorf("failed to resolve document: %w", err)
			}
			path = rel
		}

		subjects, err := client.Log(ctx, filepath.ToSlash(path), logLimit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		for _, s := range subjects {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 10, "Maximum number of entries")
}
