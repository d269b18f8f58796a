// tts-submit is an operator tool for the chat TTS service. It injects chat
// messages, checks the synthesis engine and inspects the cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

const defaultNatsURL = "nats://127.0.0.1:4222"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tts-submit",
		Short:         "Operator tool for the chat TTS service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSayCmd(),
		newWatchCmd(),
		newHealthCmd(),
		newCacheCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
