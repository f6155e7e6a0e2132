package cli

import (
	"os/signal"
	"syscall"

	"github.com/jyothri/mailpilot/agent"
	"github.com/jyothri/mailpilot/realtime"
	"github.com/spf13/cobra"
)

func newAgentCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve the mail actions and context to an assistant over HTTP without the ui",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Client.AgentAddr = addr
			}
			setupLogging(cfg)
			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sync := realtime.New(cfg.Client.ServerUrl, client.Store(), cfg.Client.ReconnectDelay)
			go sync.Run(ctx)
			if err := client.FetchInbox(ctx); err != nil {
				return explainAuthError(err)
			}
			return agent.ListenAndServe(ctx, cfg.Client.AgentAddr, agent.NewSurface(client.Store(), client))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides client.agent_addr)")

	return cmd
}
