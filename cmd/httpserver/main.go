package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/watchstate/cmd/flags"
	"github.com/ruteri/watchstate/db"
	"github.com/ruteri/watchstate/httpserver"
	"github.com/urfave/cli/v2"
)

var flagListenAddr = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "watchstate-server",
		Usage: "Serve the watch-state API on the configured storage backend",
		Flags: append(append([]cli.Flag{
			flagListenAddr,
			flags.LogServiceFlagFn("watchstate"),
		}, flags.CommonFlags...), flags.StorageFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			storageConfig, err := flags.StorageConfig(cCtx)
			if err != nil {
				logger.Error("Invalid storage configuration", "err", err)
				return err
			}

			// Never fails: an unusable backend degrades to the empty one
			mgr := db.New(storageConfig, logger)
			logger.Info("Storage selected",
				"storage_type", storageConfig.Type,
				"backend_name", mgr.StorageName())

			handler := httpserver.NewHandler(mgr, logger)
			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flagListenAddr.Name))

			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			if err := mgr.Close(); err != nil {
				logger.Warn("Failed to close storage", "err", err)
			}
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
