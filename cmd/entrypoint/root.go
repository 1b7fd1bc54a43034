package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/entrypoint"
	"github.com/Cogwheel-Validator/spectra-entry-point/host"
	"github.com/Cogwheel-Validator/spectra-entry-point/ibcadapter"
	"github.com/Cogwheel-Validator/spectra-entry-point/rpc"
	sqsquery "github.com/Cogwheel-Validator/spectra-entry-point/sqs_query"
	"github.com/Cogwheel-Validator/spectra-entry-point/venue/pool"
)

var rootCmd = &cobra.Command{
	Use:   "entrypoint",
	Short: "Swap and action entry point node",
	Long: `entrypoint hosts the swap-and-action entry point, its IBC transfer adapter
and constant product swap venues on an embedded store, and serves them over
connect RPC.

Examples:
  entrypoint serve --config ./entrypoint.toml
  entrypoint memo --sqs https://sqs.osmosis.zone --in 1000000uosmo --out uion \
    --contract osmo1... --to osmo1...`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error), overrides the config")
	rootCmd.AddCommand(serveCmd, memoCmd)
}

// setupLogging builds the process logger and hands it to every package.
// With logFile set, logs are also written there as JSON and rotated.
func setupLogging(level, logFile string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if logFile != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	base := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	component := func(name string) zerolog.Logger {
		return base.With().Str("component", name).Logger()
	}
	host.SetLogger(component("host"))
	app.SetLogger(component("app"))
	entrypoint.SetLogger(component("entrypoint"))
	ibcadapter.SetLogger(component("ibcadapter"))
	pool.SetLogger(component("pool"))
	sqsquery.SetLogger(component("sqs"))
	rpc.SetLogger(component("rpc"))
	return base, nil
}
