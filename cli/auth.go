package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/jyothri/mailpilot/config"
	"github.com/jyothri/mailpilot/credential"
	"github.com/jyothri/mailpilot/fetch"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const authTimeout = 30 * time.Second

func newLoginCmd(root *rootOptions) *cobra.Command {
	var sessionKey string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Link a Google account and store the session key",
		Long: "Prints the gateway's account linking URL. Open it in a browser, approve access,\n" +
			"then paste the sessionKey from the response.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if err := config.ValidateClient(cfg); err != nil {
				return err
			}
			serverUrl := strings.TrimRight(cfg.Client.ServerUrl, "/")

			if sessionKey == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Open %s/api/auth/login in a browser to link your account.\n", serverUrl)
				sessionKey, err = promptSessionKey(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			if sessionKey == "" {
				return errors.New("session key is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()
			identity, err := fetch.NewAPI(serverUrl, sessionKey).Me(ctx)
			if err != nil {
				return explainAuthError(fmt.Errorf("verifying session: %w", err))
			}

			creds, err := openCredentials()
			if err != nil {
				return err
			}
			if err := creds.SaveSessionKey(serverUrl, sessionKey); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", identity.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionKey, "session-key", "", "Session key from the account linking response")

	return cmd
}

// promptSessionKey asks with a masked form on a terminal and reads one line
// otherwise.
func promptSessionKey(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		var key string
		err := huh.NewInput().
			Title("Session key").
			EchoMode(huh.EchoModePassword).
			Value(&key).
			Run()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(key), nil
	}
	fmt.Fprint(out, "Session key: ")
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			creds, err := openCredentials()
			if err != nil {
				return err
			}
			sessionKey, err := creds.SessionKey(cfg.Client.ServerUrl)
			if errors.Is(err, credential.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
			defer cancel()
			// An expired session is already gone server side.
			if err := fetch.NewAPI(cfg.Client.ServerUrl, sessionKey).Logout(ctx); err != nil && !errors.Is(err, fetch.ErrUnauthenticated) {
				return fmt.Errorf("logging out: %w", err)
			}
			if err := creds.DeleteSessionKey(cfg.Client.ServerUrl); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
	return cmd
}

func newWhoamiCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the linked account",
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
			identity, err := api.Me(ctx)
			if err != nil {
				return explainAuthError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", identity.DisplayName, identity.Email)
			return nil
		},
	}
	return cmd
}
