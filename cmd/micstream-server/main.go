// ABOUTME: Entry point for the companion stream server
// ABOUTME: Parses CLI flags and receives microphone streams
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

	"github.com/Resonate-Protocol/micstream/internal/observe"
	"github.com/Resonate-Protocol/micstream/internal/server"
	"github.com/Resonate-Protocol/micstream/internal/version"
	"github.com/Resonate-Protocol/micstream/pkg/stream"
)

var (
	addr        = flag.String("addr", ":8080", "TCP listen address (empty to disable)")
	wsAddr      = flag.String("ws-addr", "", "WebSocket listen address, e.g. :8081 (empty to disable)")
	name        = flag.String("name", "", "Server friendly name (default: hostname-micstream-server)")
	logFile     = flag.String("log-file", "micstream-server.log", "Log file path")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	replyRate   = flag.Float64("reply-rate", server.DefaultReplyRate, "Chance of answering each chunk with simulated recognition text (0 disables)")
	seed        = flag.Uint64("seed", 0, "Random seed for simulated replies (0 = random)")
	sampleRate  = flag.Int("sample-rate", stream.DefaultSampleRate, "Sample rate used to report received audio duration")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9465)")
)

func main() {
	flag.Parse()

	// Set up logging (both file and console)
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	multiWriter := io.MultiWriter(os.Stdout, f)
	log.SetOutput(multiWriter)

	// Determine server name
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-micstream-server", hostname)
	}

	log.Printf("Starting %s server: %s", version.String(), serverName)
	log.Printf("Logging to: %s", *logFile)
	log.Printf("Press Ctrl-C to stop")

	config := server.Config{
		Addr:       *addr,
		WSAddr:     *wsAddr,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		SampleRate: *sampleRate,
	}
	if *replyRate > 0 {
		config.Recognizer = server.NewSimulatedRecognizer(*replyRate, *seed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *metricsAddr != "" {
		provider, err := observe.InitProvider(observe.ProviderConfig{
			ServiceName:    "micstream-server",
			ServiceVersion: version.Version,
		})
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
		defer provider.Shutdown(context.Background())

		config.Metrics, err = observe.NewServerMetrics(provider)
		if err != nil {
			log.Fatalf("Failed to create metrics: %v", err)
		}
		if err := provider.Serve(ctx, *metricsAddr); err != nil {
			log.Fatalf("Failed to serve metrics: %v", err)
		}
	}

	srv := server.New(config)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
