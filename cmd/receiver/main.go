// Package main implements the receiver node: it listens on the radio and
// drives the relay output from each frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/radio-control/lorabridge/internal/api"
	"github.com/radio-control/lorabridge/internal/config"
	"github.com/radio-control/lorabridge/internal/node"
	"github.com/radio-control/lorabridge/internal/radio"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// Step 1: Load environment and configuration
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring %s: %v", *envFile, err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logCloser := node.SetupLogging(cfg.Log)
	defer logCloser.Close()
	log.Printf("Starting LoRa bridge receiver v%s", api.Version)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Step 2: Open the relay output before the radio so the line is released
	output, err := node.OpenOutput(cfg.Receiver.OutputPin)
	if err != nil {
		node.Fatal(fmt.Errorf("output: %w", err), cfg.FatalPolicy, shutdown, os.Exit)
		return
	}

	// Step 3: Bring up the radio
	radioLink, radioCloser, err := node.OpenTransport(cfg.Radio, node.Receiver)
	if err != nil {
		node.Fatal(err, cfg.FatalPolicy, shutdown, os.Exit)
		return
	}
	defer radioCloser.Close()
	log.Printf("Radio ready (%s, %d Hz)", cfg.Radio.Transport, cfg.Radio.FrequencyHz)

	handler := radio.NewHandler(radioLink, output)

	auditLogger, err := node.NewAuditLogger(cfg.Audit, node.Receiver)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	if auditLogger != nil {
		defer auditLogger.Close()
		handler.SetAuditLogger(auditLogger)
		log.Printf("Audit trail at %s", auditLogger.GetFilePath())
	}

	// Step 4: Telemetry and status API
	snapshot := func() interface{} { return handler.Snapshot() }
	hub := node.NewHub(cfg.Telemetry, snapshot)
	defer hub.Stop()
	handler.SetPublisher(hub)

	server, err := node.NewServer(cfg.API, node.Receiver, hub, api.StateFunc(snapshot))
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}
	serverErr := make(chan error, 1)
	if server != nil {
		go func() {
			if err := server.Start(cfg.API.Listen); err != nil {
				serverErr <- err
			}
		}()
		log.Printf("Status API on %s", cfg.API.Listen)
	}

	// Step 5: Listen
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	var sinks []node.Rotator
	if r, ok := logCloser.(node.Rotator); ok {
		sinks = append(sinks, r)
	}
	if auditLogger != nil {
		sinks = append(sinks, auditLogger)
	}
	go node.WatchHangup(ctx, hangup, sinks...)

	done := make(chan error, 1)
	go func() { done <- handler.Run(ctx) }()
	log.Println("Receiver started; listening for frames")

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	cancel()
	<-done

	if server != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := server.Stop(stopCtx); err != nil {
			log.Printf("Error stopping HTTP server: %v", err)
		}
	}
	log.Println("Receiver shutdown complete")
}
