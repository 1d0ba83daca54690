package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/livedash/pkg/daemon"
)

func newCtlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ctl COMMAND [VIEW] [VALUE]",
		Short: "Send a control command to a running serve",
		Long: `ctl sends one command over the serve control socket and prints the
JSON reply. Commands:

  HEALTH             full health document
  LIST               mounted view names
  RETRY VIEW         run one extra tick now
  AUTO VIEW on|off   switch auto-refresh
  TOUCH [VIEW]       record a push notification`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			resp, err := daemon.NewIPCClient(socketPath(cfg)).SendCommand(strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp)
			return err
		},
	}
}
