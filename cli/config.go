package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jyothri/mailpilot/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config management",
	}
	cmd.AddCommand(newConfigInitCmd(root))
	cmd.AddCommand(newConfigShowCmd(root))
	return cmd
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var (
		force        bool
		clientId     string
		clientSecret string
		topic        string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath
			if path == "" {
				var err error
				path, err = config.ConfigPath()
				if err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s; use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg := config.DefaultConfig()
			if cmd.Flags().Changed("client-id") {
				cfg.OAuth.ClientId = clientId
			}
			if cmd.Flags().Changed("client-secret") {
				cfg.OAuth.ClientSecret = clientSecret
			}
			if cmd.Flags().Changed("topic") {
				cfg.Pubsub.Topic = topic
			}

			saved, err := config.Save(path, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", saved)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().StringVar(&clientId, "client-id", "", "Google OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Google OAuth client secret")
	cmd.Flags().StringVar(&topic, "topic", "", "Pub/Sub topic for push notifications")

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !showSecrets {
				cfg = config.Redact(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Show secrets in output")

	return cmd
}
