package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// ExitError asks the caller to exit with Code. A nil Err means the command
// already reported everything it had to say.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	cfgFile  string
	logLevel string
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "factkit",
		Short: "factkit - fact-checking tools behind one invocation contract",
		Long: `factkit runs fact-checking tools (claim parsing, evidence retrieval,
stance scoring, verdicts) behind a uniform result envelope.
Tools can be listed, invoked from the shell or served over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.factkit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newToolsCmd(opts),
		newInvokeCmd(opts),
		newCheckCmd(),
		newServeCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
