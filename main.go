// ABOUTME: Entry point for the microphone streaming client
// ABOUTME: Parses CLI flags and streams captured audio to a server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/micstream/internal/app"
	"github.com/Resonate-Protocol/micstream/internal/config"
	"github.com/Resonate-Protocol/micstream/internal/observe"
	"github.com/Resonate-Protocol/micstream/internal/ui"
	"github.com/Resonate-Protocol/micstream/internal/version"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, app.Describe(err))
		return 1
	}

	useTUI := !settings.NoTUI

	// Set up logging
	f, err := os.OpenFile(settings.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.Options{Settings: settings}

	if settings.MetricsAddr != "" {
		provider, err := observe.InitProvider(observe.ProviderConfig{ServiceVersion: version.Version})
		if err != nil {
			log.Printf("Failed to initialize metrics: %v", err)
		} else {
			defer provider.Shutdown(context.Background())
			if err := provider.Serve(ctx, settings.MetricsAddr); err != nil {
				log.Printf("Failed to serve metrics: %v", err)
			}
			opts.MeterProvider = provider
		}
	}

	// TUI setup
	var tuiProg *tea.Program
	tuiDone := make(chan struct{})
	if useTUI {
		controls := ui.NewControls()
		tuiProg = ui.Run(controls)
		opts.UI = tuiProg
		opts.Consumer = ui.NewTUIConsumer(tuiProg)

		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		// Quitting the TUI stops the stream like a signal does.
		go func() {
			select {
			case <-controls.Quit:
				log.Printf("Received quit signal from TUI")
				stop()
			case <-ctx.Done():
			}
		}()
	} else {
		close(tuiDone)
		opts.Consumer = ui.NewWriterConsumer(os.Stdout)
	}

	client, err := app.New(opts)
	if err == nil {
		err = client.Run(ctx)
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	<-tuiDone

	if err != nil {
		log.Printf("Stream failed: %s", app.Describe(err))
		fmt.Fprintln(os.Stderr, app.Describe(err))
	}
	log.Printf("Client stopped")
	return app.ExitCode(err)
}
