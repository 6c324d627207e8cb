package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "helpdesk",
		Short:         "IT helpdesk triage bot",
		Long:          `Triages IT requests arriving from Slack: answers, walks users through troubleshooting guides and raises Freshservice tickets.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newResolveCommand(),
		newArticlesCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
