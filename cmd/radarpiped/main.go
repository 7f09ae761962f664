// Command radarpiped runs the acquisition and processing pipeline in the
// foreground until interrupted. Control is exposed over a Unix socket for
// the radarpipe CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"radarpipe/internal/config"
	"radarpipe/internal/daemon"
	"radarpipe/internal/ipc"
	"radarpipe/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolved, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	logger.Info("configuration loaded", logging.String("path", resolved))

	manager, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create pipeline manager: %v", err)
	}
	defer manager.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, manager, logger, cancel)
	if err != nil {
		log.Fatalf("start ipc server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := manager.Start(ctx); err != nil {
		log.Fatalf("start pipeline: %v", err)
	}

	<-ctx.Done()
	logger.Info("radarpiped shutting down")
}
