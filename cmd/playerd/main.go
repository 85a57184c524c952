// Command playerd is the robot device server.
//
// It loads a YAML configuration file, builds the configured drivers and
// serves them to clients over TCP.
//
// Usage:
//
//	playerd [flags]
//
// Flags:
//
//	-config string        Configuration file path (required)
//	-port int             Listen port, overrides server.port
//	-key string           Authentication key, overrides server.key
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write protocol events to this .plog file
//	-metrics string       Listen address of the HTTP monitor (/metrics, /events)
//	-interactive          Enable the operator console
//	-version              Print the version and exit
//
// Examples:
//
//	# Serve a simulated robot
//	playerd -config robot.yaml
//
//	# Debug a client with protocol capture and live events
//	playerd -config robot.yaml -log-level debug -protocol-log run.plog -metrics :9090
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/player-project/playerd/cmd/playerd/interactive"
	"github.com/player-project/playerd/pkg/config"
	"github.com/player-project/playerd/pkg/drivers"
	"github.com/player-project/playerd/pkg/server"
	"github.com/player-project/playerd/pkg/version"
)

// Flags holds the command-line settings.
type Flags struct {
	ConfigFile  string
	Port        int
	Key         string
	LogLevel    string
	ProtocolLog string
	Metrics     string
	Interactive bool
	Version     bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.IntVar(&flags.Port, "port", 0, "Listen port (overrides server.port)")
	flag.StringVar(&flags.Key, "key", "", "Authentication key (overrides server.key)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write protocol events to this .plog file")
	flag.StringVar(&flags.Metrics, "metrics", "", "Listen address of the HTTP monitor")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Enable the operator console")
	flag.BoolVar(&flags.Version, "version", false, "Print the version and exit")
}

func main() {
	flag.Parse()

	if flags.Version {
		fmt.Printf("playerd %s\n", version.Current)
		return
	}
	if flags.ConfigFile == "" {
		fmt.Fprintln(os.Stderr, "playerd: -config is required")
		flag.Usage()
		os.Exit(2)
	}

	setupLogging(flags.LogLevel)

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := applyFlags(cfg, flags); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	log.Println("playerd")
	log.Println("=======")
	log.Printf("Version: %s", version.Current)
	log.Printf("Port:    %d", cfg.Server.Port)
	log.Printf("Drivers: %d", len(cfg.Drivers))

	out := &switchWriter{w: os.Stderr}
	srv := server.New(cfg, drivers.Factories(), server.Options{
		Logger: newLogger(out, flags.LogLevel),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Serving on %s (state: %s)", srv.Addr(), srv.State())
	if addr := srv.MonitorAddr(); addr != nil {
		log.Printf("Monitor on http://%s/", addr)
	}

	if flags.Interactive {
		console, err := interactive.New(srv)
		if err != nil {
			log.Fatalf("Failed to create console: %v", err)
		}
		// Route log output through readline so it does not break the prompt.
		out.Set(console.Stdout())
		log.SetOutput(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	cancel()
	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Goodbye!")
}

// applyFlags overrides configuration values with the flags that were set.
func applyFlags(cfg *config.Config, f Flags) error {
	if f.Port != 0 {
		if f.Port < 0 || f.Port > 65535 {
			return fmt.Errorf("port out of range: %d", f.Port)
		}
		cfg.Server.Port = uint16(f.Port)
		cfg.Bind()
	}
	if f.Key != "" {
		cfg.Server.Key = f.Key
		cfg.Server.Secret = ""
	}
	if f.ProtocolLog != "" {
		cfg.Server.ProtocolLog = f.ProtocolLog
	}
	if f.Metrics != "" {
		cfg.Server.Monitor = f.Metrics
	}
	return cfg.Validate()
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

// newLogger builds the component logger.
func newLogger(out io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
}

// switchWriter lets the console take over log output after startup.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
