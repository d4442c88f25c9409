package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tuneedit/api/internal/thumbnail"
)

// errRejected makes the command exit non-zero after printing the outcome.
var errRejected = errors.New("thumbnail rejected")

type validateResult struct {
	Files    []string          `json:"files"`
	Accepted bool              `json:"accepted"`
	Outcome  thumbnail.Outcome `json:"outcome"`
	Message  string            `json:"message,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Run the picker guard and the validator over the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates := make([]thumbnail.Candidate, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				candidates = append(candidates, thumbnail.Candidate{
					Name: filepath.Base(path),
					Data: data,
				})
			}

			result := validateResult{Files: args}
			if rej := thumbnail.CheckSelection(candidates); rej != nil {
				result.Outcome = thumbnail.Rejected(rej.Reason)
			} else {
				outcome, err := thumbnail.Validate(cmd.Context(), candidates[0].Data)
				if err != nil {
					return err
				}
				result.Outcome = outcome
			}
			result.Accepted = result.Outcome.IsAccepted()
			if !result.Accepted {
				result.Message = result.Outcome.Reason.Message()
			}

			if err := printValidateResult(cmd, result, asJSON); err != nil {
				return err
			}
			if !result.Accepted {
				return errRejected
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func printValidateResult(cmd *cobra.Command, result validateResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Accepted {
		fmt.Fprintf(out, "accepted %dx%d\n", result.Outcome.Width, result.Outcome.Height)
		return nil
	}
	fmt.Fprintf(out, "rejected: %s (%s)\n", result.Outcome.Reason, result.Message)
	return nil
}
