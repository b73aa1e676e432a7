// Command jansevak is the operator CLI: bearer tokens, admin triage against
// Postgres and the docker compose development loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// defaultComposeFile ships at the repository root.
const defaultComposeFile = "docker-compose.yml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jansevak: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jansevak",
		Short: "JanSevak operator CLI",
		Long: `jansevak issues bearer tokens, triages complaints directly against the production
database and drives the docker compose development stack.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newTokenCmd(),
		newComplaintsCmd(),
		newStackCmd(),
		newTestCmd(),
		newRunCmd(),
	)
	return cmd
}
