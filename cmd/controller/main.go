// Package main implements the controller node: it polls the chat service,
// authorizes operators and transmits actuation frames over the radio.
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

	"github.com/radio-control/lorabridge/internal/actuator"
	"github.com/radio-control/lorabridge/internal/api"
	"github.com/radio-control/lorabridge/internal/auth"
	"github.com/radio-control/lorabridge/internal/config"
	"github.com/radio-control/lorabridge/internal/dispatch"
	"github.com/radio-control/lorabridge/internal/node"
	"github.com/radio-control/lorabridge/internal/telegram"
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
	log.Printf("Starting LoRa bridge controller v%s", api.Version)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Step 2: Provision credentials
	creds, saved, err := config.Provision(config.NewFileStore(cfg.CredentialsPath))
	if err != nil {
		node.Fatal(fmt.Errorf("credentials: %w", err), cfg.FatalPolicy, shutdown, os.Exit)
		return
	}
	if saved {
		log.Printf("Credentials saved to %s", cfg.CredentialsPath)
	}

	// Step 3: Bring up the radio
	radioLink, radioCloser, err := node.OpenTransport(cfg.Radio, node.Controller)
	if err != nil {
		node.Fatal(err, cfg.FatalPolicy, shutdown, os.Exit)
		return
	}
	defer radioCloser.Close()
	log.Printf("Radio ready (%s, %d Hz)", cfg.Radio.Transport, cfg.Radio.FrequencyHz)

	// Step 4: Connect the chat service
	bot, err := telegram.New(creds.BotToken, telegram.Options{APIServer: cfg.Telegram.APIServer})
	if err != nil {
		node.Fatal(err, cfg.FatalPolicy, shutdown, os.Exit)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	botName := cfg.Telegram.BotName
	if botName == "" {
		lookup, lookupCancel := context.WithTimeout(ctx, 10*time.Second)
		botName, err = bot.BotName(lookup)
		lookupCancel()
		if err != nil {
			log.Printf("Bot name lookup failed, qualified commands will not match: %v", err)
		}
	}

	// Step 5: Build the dispatcher
	mirrorOut, err := node.OpenOutput(cfg.Controller.MirrorPin)
	if err != nil {
		node.Fatal(fmt.Errorf("mirror output: %w", err), cfg.FatalPolicy, shutdown, os.Exit)
		return
	}
	opts := dispatch.Options{
		Interval:         cfg.Controller.PollInterval,
		BotName:          botName,
		RegisterCommands: cfg.Controller.RegisterCommands,
	}
	if cfg.Controller.Announce {
		opts.AnnounceTo = creds.Secondary
	}
	dispatcher := dispatch.NewDispatcher(bot, auth.NewWhitelist(creds.Primary, creds.Secondary),
		radioLink, actuator.NewMirror(mirrorOut), opts)

	auditLogger, err := node.NewAuditLogger(cfg.Audit, node.Controller)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	if auditLogger != nil {
		defer auditLogger.Close()
		dispatcher.SetAuditLogger(auditLogger)
		log.Printf("Audit trail at %s", auditLogger.GetFilePath())
	}

	// Step 6: Telemetry and status API
	snapshot := func() interface{} { return dispatcher.Snapshot() }
	hub := node.NewHub(cfg.Telemetry, snapshot)
	defer hub.Stop()
	dispatcher.SetPublisher(hub)

	server, err := node.NewServer(cfg.API, node.Controller, hub, api.StateFunc(snapshot))
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

	// Step 7: Poll
	dispatcher.Start(ctx)
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()
	log.Printf("Controller started; polling every %v", cfg.Controller.PollInterval)

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
	log.Println("Controller shutdown complete")
}
