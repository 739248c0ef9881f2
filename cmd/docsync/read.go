package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/docsync"
)

var (
	readJSON bool
)

type readOutput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

var readCmd = &cobra.Command{
	Use:   "read [path]",
	Short: "Read a document",
	Long:  `Read a document of the workspace. Outputs raw content by default, or a JSON object with --json.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(docsync.WithReadOnly(true), docsync.WithNotifier(nil))
		if err != nil {
			return fmt.Errorf("failed to initialize docsync: %w", err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		s, err := eng.Open(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}

		if readJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(readOutput{Path: string(s.Path()), Content: s.Content()})
		}

		fmt.Fprint(cmd.OutOrStdout(), s.Content())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Output in JSON format")
}
