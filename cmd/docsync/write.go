package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/docsync"
	"github.com/aretw0/docsync/pkg/adapters/fs"
)

var (
	writeContent string
	changeReason string
	writeType    string
	writeScope   string
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write [path]",
	Short: "Write a document",
	Long: `Replace the content of a document, creating it if needed.
Content comes from --content or, when omitted, from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		content := writeContent
		if !cmd.Flags().Changed("content") {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			content = string(data)
		}

		eng, err := openEngine(docsync.WithNotifier(nil))
		if err != nil {
			return fmt.Errorf("failed to initialize docsync: %w", err)
		}
		ctx := context.Background()
		defer eng.Close(ctx)

		if err := ensureDocument(eng.Root(), path); err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}

		s, err := eng.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to open document: %w", err)
		}

		// The reason becomes the commit message when the workspace is versioned.
		var finalMsg string
		if writeType != "" {
			if changeReason == "" {
				changeReason = fmt.Sprintf("update %s", filepath.Base(path))
			}
			finalMsg = docsync.FormatChangeReason(writeType, writeScope, changeReason, "")
		} else if changeReason != "" {
			finalMsg = docsync.AppendFooter(changeReason)
		}
		if finalMsg != "" {
			ctx = docsync.WithChangeReason(ctx, finalMsg)
		}

		if err := s.SaveNow(ctx, content); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Document '%s' saved.\n", s.Path())
		return nil
	},
}

// ensureDocument creates an empty file at path if none exists.
func ensureDocument(root, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); !fs.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0644)
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringVar(&writeContent, "content", "", "Document content")
	writeCmd.Flags().StringVarP(&changeReason, "message", "m", "", "Change reason (commit message)")
	writeCmd.Flags().StringVarP(&writeType, "type", "t", "", "Change type (feat, fix, docs, etc)")
	writeCmd.Flags().StringVarP(&writeScope, "scope", "s", "", "Commit scope")
}
