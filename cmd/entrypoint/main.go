// Command entrypoint runs a swap-and-action node and builds swap memos
// against it.
//
// Usage:
//
//	entrypoint serve --config ./entrypoint.toml
//	entrypoint memo --sqs https://sqs.osmosis.zone --in 1000000uosmo --out uion \
//	  --contract osmo1... --to osmo1...
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
