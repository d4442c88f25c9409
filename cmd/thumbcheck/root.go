package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "thumbcheck",
		Short:         "Check and encode audio thumbnails the way the editor does",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newEncodeCommand())

	return rootCmd
}
