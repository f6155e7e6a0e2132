package cli

import (
	"errors"
	"fmt"

	"github.com/jyothri/mailpilot/config"
	"github.com/jyothri/mailpilot/credential"
	"github.com/jyothri/mailpilot/fetch"
	"github.com/jyothri/mailpilot/store"
)

func openCredentials() (*credential.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return credential.Open(dir)
}

// newAPI builds a gateway client from the stored session for
// client.server_url.
func newAPI(cfg config.Config) (*fetch.API, error) {
	if err := config.ValidateClient(cfg); err != nil {
		return nil, err
	}
	creds, err := openCredentials()
	if err != nil {
		return nil, err
	}
	sessionKey, err := creds.SessionKey(cfg.Client.ServerUrl)
	if err != nil {
		return nil, err
	}
	return fetch.NewAPI(cfg.Client.ServerUrl, sessionKey), nil
}

func newClient(cfg config.Config) (*fetch.Client, error) {
	api, err := newAPI(cfg)
	if err != nil {
		return nil, err
	}
	return fetch.NewClient(api, store.New(), cfg.Client.PageSize), nil
}

func explainAuthError(err error) error {
	if errors.Is(err, fetch.ErrUnauthenticated) {
		return fmt.Errorf("%w; run `mailpilot login` again", err)
	}
	return err
}
