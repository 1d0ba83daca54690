package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/credentials"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored API token",
		Long: `token manages the bearer token persisted in the cache dir. LIVEDASH_TOKEN,
then a token set in the config file, take precedence over the stored one.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [TOKEN]",
		Short: "Store a token (reads stdin when TOKEN is omitted or -)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := ""
			if len(args) == 1 && args[0] != "-" {
				tok = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read token: %w", err)
				}
				tok = line
			}
			tok = strings.TrimSpace(tok)
			if tok == "" {
				return errors.New("empty token")
			}
			return setStoredToken(cmd, tok)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setStoredToken(cmd, "")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show which token is in effect, masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			sources := []struct {
				label    string
				provider credentials.Provider
			}{
				{"env", credentials.Env{Var: credentials.TokenEnv}},
				{"config", credentials.NewStatic(cfg.API.Token)},
				{"stored", credentials.NewStored(store)},
			}
			w := cmd.OutOrStdout()
			for _, src := range sources {
				tok, err := src.provider.Token(cmd.Context())
				if err != nil {
					return err
				}
				if tok != "" {
					fmt.Fprintf(w, "%s: %s\n", src.label, maskToken(tok))
					return nil
				}
			}
			fmt.Fprintln(w, "no token")
			return nil
		},
	})
	return cmd
}

// setStoredToken writes through the same chain the dashboard reads, so the
// read-only environment variable is skipped and the token lands in the
// store. An empty token removes the stored one.
func setStoredToken(cmd *cobra.Command, tok string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	chain := credentials.Chain{
		credentials.Env{Var: credentials.TokenEnv},
		credentials.NewStored(store),
	}
	if err := chain.SetToken(cmd.Context(), tok); err != nil {
		return err
	}
	if tok == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "token cleared")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "token stored")
	}
	return nil
}

// maskToken keeps the last four characters.
func maskToken(tok string) string {
	if len(tok) <= 4 {
		return strings.Repeat("*", len(tok))
	}
	return strings.Repeat("*", len(tok)-4) + tok[len(tok)-4:]
}
