// Package main provides the entry point for the revchurn CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/revchurn/cmd/revchurn/commands"
	"github.com/Sumatoshi-tech/revchurn/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "revchurn",
		Short: "Revchurn - code churn reporting over version-controlled history",
		Long: `Revchurn measures code churn across a revision range.

Commands:
  report    Aggregate added and removed lines over a revision range`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
