package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyothri/mailpilot/config"
	"github.com/jyothri/mailpilot/db"
	"github.com/jyothri/mailpilot/mailbox"
	"github.com/jyothri/mailpilot/notification"
	"github.com/jyothri/mailpilot/web"
	"github.com/spf13/cobra"
)

const watchRenewalInterval = 6 * time.Hour

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Gmail gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			setupLogging(cfg)
			if err := config.ValidateServer(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	store, err := db.Open(cfg.Database.Driver, cfg.Database.Dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	oauthConfig := mailbox.OAuthConfig(cfg.OAuth.ClientId, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectUrl)
	server := web.NewServer(web.Options{
		Addr:              cfg.Server.Addr,
		FrontendUrl:       cfg.Server.FrontendUrl,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		OAuth:             oauthConfig,
		PubsubTopic:       cfg.Pubsub.Topic,
		VerificationToken: cfg.Pubsub.VerificationToken,
	}, store, notification.NewHub(), web.GmailMailboxes(oauthConfig))

	if cfg.Pubsub.Topic != "" {
		go server.RunWatchRenewal(ctx, watchRenewalInterval)
	}
	return server.ListenAndServe(ctx)
}
