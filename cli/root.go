package cli

import (
	"fmt"
	"os"

	"github.com/jyothri/mailpilot/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "mailpilot",
		Short:        "mailpilot is a Gmail client with a gateway server, a terminal UI and an agent surface",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/mailpilot/config.yaml)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newTuiCmd(opts))
	cmd.AddCommand(newAgentCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newWhoamiCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}
