package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/factkit/pkg/tool"
)

func newToolsCmd(opts *globalOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		Long: `List every tool the registry would dispatch to, with its retry safety
and parameters. Tools denied by the configured policy are still listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			return writeTools(cmd.OutOrStdout(), a.registry.List(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (json, yaml, table)")

	return cmd
}

func writeTools(w io.Writer, infos []tool.Info, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(infos); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tRETRY SAFE\tPARAMETERS\tDESCRIPTION")
		for _, info := range infos {
			names := make([]string, 0, len(info.Parameters))
			for _, p := range info.Parameters {
				name := p.Name
				if p.Required {
					name += "*"
				}
				names = append(names, name)
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", info.Name, info.RetrySafe, strings.Join(names, ","), info.Description)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (must be one of: json, yaml, table)", format)
	}
}
