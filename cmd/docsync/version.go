package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/docsync"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of docsync",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docsync version %s\n", strings.TrimSpace(docsync.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
