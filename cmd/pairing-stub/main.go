package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"github.com/omochice/chatanon/internal/pairingstub"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pairing-stub: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "pairing-stub",
		Short: "Run a local pairing server for chatanon",
		Long: `Run a local pairing server speaking the chatanon wire protocol.

Clients connect to /ws and are paired first come first served once they have
sent their user data. GET /api/users/online reports how many are connected.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logs.GetLoggerFromString(logLevel)
			hub := pairingstub.NewHub(log)
			return pairingstub.NewServer(hub, log).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":3001", "Address to listen on")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	return cmd
}
