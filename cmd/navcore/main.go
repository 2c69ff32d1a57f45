package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"navcore/internal/config"
	"navcore/internal/web"
)

const statusInterval = 10 * time.Second

func main() {
	var configPath, summaryPath string
	flag.StringVar(&configPath, "config", "./navcore.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "log-summary", "", "Print a summary of a flight log database and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printLogSummary(context.Background(), os.Stdout, summaryPath); err != nil {
			fmt.Fprintf(os.Stderr, "log summary failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var logs *web.LogBuffer
	if cfg.Web.Enable {
		logs = web.NewLogBuffer(2000)
		log.SetOutput(io.MultiWriter(os.Stderr, logs))
	}

	rt, err := newRuntime(ctx, cfg, logs)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	log.Printf("navcore starting heartbeat_hz=%d sim=%t gps=%t hil=%t", cfg.HeartbeatHz, cfg.Sim.Enable, cfg.GPS.Enable, cfg.HIL.Enable)
	if err := rt.Start(ctx); err != nil {
		rt.Close()
		log.Fatalf("heartbeat start failed: %v", err)
	}

	t := time.NewTicker(statusInterval)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-rt.Done():
			break loop
		case <-t.C:
			log.Print(rt.statusLine())
		}
	}

	log.Printf("navcore stopping")
	rt.Close()
	log.Print(rt.statusLine())
}
