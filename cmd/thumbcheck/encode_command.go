package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuneedit/api/internal/thumbnail"
)

func newEncodeCommand() *cobra.Command {
	var dataURL bool

	cmd := &cobra.Command{
		Use:   "encode <file>",
		Short: "Print the file as the base64 text sent to the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if dataURL {
				fmt.Fprintln(cmd.OutOrStdout(), thumbnail.DataURL(data))
				return nil
			}

			encoded, err := thumbnail.Encode(bytes.NewReader(data))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dataURL, "data-url", false, "Keep the data: prefix")
	return cmd
}
