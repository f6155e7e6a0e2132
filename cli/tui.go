package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jyothri/mailpilot/agent"
	"github.com/jyothri/mailpilot/realtime"
	"github.com/jyothri/mailpilot/ui"
	"github.com/spf13/cobra"
)

func newTuiCmd(root *rootOptions) *cobra.Command {
	var serveAgent bool
	var addr string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal mail client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Client.AgentAddr = addr
			}
			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			closeLog, err := setupFileLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			// The assistant drives the same store the screen renders.
			if serveAgent {
				surface := agent.NewSurface(client.Store(), client)
				go func() {
					if err := agent.ListenAndServe(ctx, cfg.Client.AgentAddr, surface); err != nil {
						slog.Error("Agent server failed", "addr", cfg.Client.AgentAddr, "error", err)
					}
				}()
			}

			slog.Info("Starting terminal ui", "server_url", cfg.Client.ServerUrl, "agent", serveAgent)
			sync := realtime.New(cfg.Client.ServerUrl, client.Store(), cfg.Client.ReconnectDelay)
			return ui.Run(ctx, client, sync)
		},
	}

	cmd.Flags().BoolVar(&serveAgent, "agent", true, "Serve the assistant surface alongside the ui")
	cmd.Flags().StringVar(&addr, "addr", "", "Agent listen address (overrides client.agent_addr)")

	return cmd
}
