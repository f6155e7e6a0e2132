package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jyothri/mailpilot/fetch"
	"github.com/spf13/cobra"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var topic string
	var status bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe the linked mailbox to push notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			api, err := newAPI(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()
			if status {
				return explainAuthError(printWatchStatus(ctx, api, cmd.OutOrStdout()))
			}
			res, err := api.Watch(ctx, topic)
			if err != nil {
				return explainAuthError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching (historyId %s, expires %s)\n", res.HistoryId, res.Expiration)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Pub/Sub topic (default: the server's pubsub.topic)")
	cmd.Flags().BoolVar(&status, "status", false, "Show the current subscription instead of creating one")
	cmd.MarkFlagsMutuallyExclusive("topic", "status")

	return cmd
}

func printWatchStatus(ctx context.Context, api *fetch.API, out io.Writer) error {
	res, err := api.WatchStatus(ctx)
	var apiErr *fetch.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		fmt.Fprintln(out, "Not watching")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Watching %s (historyId %s, expires %s)\n", res.Topic, res.HistoryId, res.Expiration)
	return nil
}
