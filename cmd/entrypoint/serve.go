package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cogwheel-Validator/spectra-entry-point/app"
	"github.com/Cogwheel-Validator/spectra-entry-point/config"
	"github.com/Cogwheel-Validator/spectra-entry-point/rpc"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the node from genesis and serve RPC",
	Long: `Boot the node from its genesis and serve the connect RPC until interrupted.

Without --config the configuration is read from ENTRYPOINT_* environment
variables and an optional .env file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "TOML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	var path *string
	if serveConfigPath != "" {
		path = &serveConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return err
	}

	level := cfg.LogLevel
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	if log, err = setupLogging(level, cfg.LogFile); err != nil {
		return err
	}

	log.Info().
		Str("config", serveConfigPath).
		Str("genesis", cfg.GenesisSource).
		Str("data_dir", cfg.DataDir).
		Msg("Starting Spectra entry point")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	genesis, err := config.LoadGenesis(ctx, cfg.GenesisSource)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load genesis")
		return err
	}
	node, err := app.Open(ctx, cfg, genesis)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open node")
		return err
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	server, err := rpc.NewServer(ctx, rpc.ServerConfigFrom(cfg), node)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create RPC server")
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("Server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}
