package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/isdmx/execd/app"
	"github.com/isdmx/execd/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the flags shared by every subcommand
type options struct {
	configFile string
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&o.configFile, "config", "c", "", "path to a YAML config file (default: ./config.yaml or ./config/config.yaml)")
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "execd",
		Short:         "Code execution server for a sandbox container",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts.configFile, app.HTTP)
		},
	}
	opts.addFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the execution tools over HTTP (default)",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return run(opts.configFile, app.HTTP)
			},
		},
		&cobra.Command{
			Use:   "stdio",
			Short: "Serve the execution tools as an MCP server on stdin/stdout",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return run(opts.configFile, app.Stdio)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			},
		},
	)

	return root
}

// run builds the application and blocks until it receives a stop signal
func run(configFile string, transport fx.Option) error {
	application := app.New(configFile, transport)
	if err := application.Err(); err != nil {
		return err
	}
	application.Run()
	return nil
}
