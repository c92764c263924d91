package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/factkit/pkg/toolresult"
)

func newCheckCmd() *cobra.Command {
	var sanitize bool

	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Check that a payload is a well-formed result envelope",
		Long: `Run the envelope guardrail on a JSON payload read from a file or stdin.
Prints "ok" and exits 0 when the payload is a well-formed envelope,
otherwise prints the violation and exits 1.

With --sanitize, unknown top-level members are dropped before the check
and the cleaned envelope is printed instead of "ok".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			var (
				payload []byte
				err     error
			)
			if path == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			if sanitize {
				var raw map[string]interface{}
				if err := json.Unmarshal(payload, &raw); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "invalid: payload is not a JSON object: %v\n", err)
					return &ExitError{Code: ExitCodeError}
				}
				payload, err = json.Marshal(toolresult.Sanitize(raw))
				if err != nil {
					return fmt.Errorf("failed to encode sanitized payload: %w", err)
				}
			}

			if err := toolresult.Check(payload); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", err)
				return &ExitError{Code: ExitCodeError}
			}

			if sanitize {
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().BoolVar(&sanitize, "sanitize", false, "drop unknown top-level members and print the cleaned envelope")
	return cmd
}
