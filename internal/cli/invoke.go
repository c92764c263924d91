package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/factkit/internal/tracing"
	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

// Exit codes for invoke, by envelope status.
const (
	ExitCodeOK    = 0
	ExitCodeError = 1
	ExitCodeRetry = 2
)

func newInvokeCmd(opts *globalOptions) *cobra.Command {
	var (
		argsJSON string
		argsFile string
	)

	cmd := &cobra.Command{
		Use:   "invoke <tool>",
		Short: "Invoke one tool and print its result envelope",
		Long: `Invoke one tool with a JSON argument object and print the result envelope
on stdout. Without --args or --args-file the tool receives no arguments.

Exit status is 0 for ok, 1 for error and 2 for retry.`,
		Example: `  factkit invoke echo --args '{"text":"hello"}'
  echo '{"c":"The Eiffel Tower is in Paris."}' | factkit invoke claim_normalize --args-file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if argsJSON != "" && argsFile != "" {
				return fmt.Errorf("--args and --args-file are mutually exclusive")
			}

			raw, err := readArgs(cmd, argsJSON, argsFile)
			if err != nil {
				return err
			}
			toolArgs, err := parseArgs(raw)
			if err != nil {
				return err
			}

			ctx := tracing.NewRequestContext(cmd.Context(), "")
			a, err := newApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, span := tracing.StartSpan(ctx, "github.com/harun/factkit/internal/cli", "cli.invoke",
				attribute.String("tool.name", args[0]),
			)
			env := a.registry.Invoke(ctx, args[0], toolArgs)
			span.End()

			out, err := json.Marshal(env)
			if err != nil {
				return fmt.Errorf("failed to encode envelope: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return exitFor(env.Status())
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")
	cmd.Flags().StringVar(&argsFile, "args-file", "", "read tool arguments from a file (- for stdin)")

	return cmd
}

func readArgs(cmd *cobra.Command, argsJSON, argsFile string) ([]byte, error) {
	switch {
	case argsJSON != "":
		return []byte(argsJSON), nil
	case argsFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments from stdin: %w", err)
		}
		return data, nil
	case argsFile != "":
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// parseArgs treats empty input and JSON null as absent args. Any other
// non-object JSON is passed on as absent args too, which tools reject as BAD_ARGS.
func parseArgs(raw []byte) (tool.Args, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return tool.Args(obj), nil
}

func exitFor(status toolresult.Status) error {
	switch status {
	case toolresult.StatusOK:
		return nil
	case toolresult.StatusRetry:
		return &ExitError{Code: ExitCodeRetry}
	default:
		return &ExitError{Code: ExitCodeError}
	}
}
