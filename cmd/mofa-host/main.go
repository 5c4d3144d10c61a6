package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mofa-studio/mofa-core/internal/logging"
	"github.com/mofa-studio/mofa-core/internal/metrics"
	"github.com/mofa-studio/mofa-core/pkg/config"
	"github.com/mofa-studio/mofa-core/pkg/dataflow"
	"github.com/mofa-studio/mofa-core/pkg/hub"
	"github.com/mofa-studio/mofa-core/pkg/runtime"
)

// bufferStatusTick is the UI timer period the turn-coordination protocol
// drives buffer_status and smart-reset checks on (spec.md §5 "One UI
// thread... at ~20 Hz (50 ms timer)").
const bufferStatusTick = 50 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	cli, err := config.ParseCLI(os.Args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if cli.DataflowPath == "" {
		log.Fatal("Error: --dataflow <path> is required")
	}

	logger := logging.New(logging.ParseLevel(cli.LogLevel))

	reg, err := metrics.New()
	if err != nil {
		logger.Warn("metrics registry unavailable, continuing without instrumentation", "error", err.Error())
		reg = metrics.Noop()
	}
	defer reg.Shutdown(context.Background())

	prefsPath, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if cli.DarkMode {
		prefs.DarkMode = true
	}
	if err := prefs.Save(prefsPath); err != nil {
		logger.Warn("failed to persist preferences", "error", err.Error())
	}

	launcher := &dataflow.ExecLauncher{
		Executable: "dora",
		StartArgs:  []string{"start"},
		StopArgs:   func(id string) []string { return []string{"stop", id} },
	}

	rt := runtime.New(runtime.Config{
		SpecPath:      cli.DataflowPath,
		SampleRate:    cli.SampleRate,
		BufferSeconds: 30,
		Launcher:      launcher,
		Logger:        logger,
		Metrics:       reg,
		MinLogLevel:   hub.LogLevel(strings.ToUpper(cli.LogLevel)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("MoFA Studio Core running: dataflow=%s sample_rate=%dHz\n", cli.DataflowPath, cli.SampleRate)
	fmt.Println("Press Ctrl+C to exit")

	ticker := time.NewTicker(bufferStatusTick)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				rt.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := rt.Stop(stopCtx); err != nil {
		logger.Error("error during shutdown", "error", err.Error())
	}
}
