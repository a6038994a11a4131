// main.go - self-hosted ingestion server
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"rankitopixel/internal/collector"
	"rankitopixel/internal/config"
	"rankitopixel/internal/logging"
)

func main() {
	cfg := config.GetConfig()
	logger := logging.NewLogger(cfg)

	c := collector.New(cfg, logger)
	app := c.App()

	if cfg.IsDevelopment() {
		log.Printf("Running in development mode, debug events available at /debug/events")
	}

	go func() {
		log.Printf("Collector listening on :%s", cfg.CollectorPort)
		if err := app.Listen(":" + cfg.CollectorPort); err != nil {
			log.Fatalf("Failed to start collector: %v", err)
		}
	}()

	waitForShutdownSignal()

	log.Println("Initiating graceful shutdown...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server shutdown complete")
}

// waitForShutdownSignal blocks until a termination signal arrives
func waitForShutdownSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigChan
	log.Printf("Received signal: %v", sig)
}
