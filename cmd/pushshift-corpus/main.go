// Command pushshift-corpus fetches subreddit submissions and their comments
// from the Pushshift aggregation API, flattens them to CSV and extracts the
// comment text into a plain corpus file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/pushshift-corpus/cmd/pushshift-corpus/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
