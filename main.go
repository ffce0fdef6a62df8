package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sapirgolan/voice-to-text/internal/app"
	"github.com/sapirgolan/voice-to-text/internal/config"
)

func main() {
	envPath := flag.String("env", "", "path to .env file (default: ./.env if present)")
	validateKey := flag.Bool("validate-key", false, "probe the API with the configured key and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	if err := cfg.Validate(true); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	a := app.New(cfg, log)

	if *validateKey {
		if a.Client().ValidateKey(context.Background(), "") {
			fmt.Println("API key is valid")
			return
		}
		fmt.Println("API key is invalid")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	// Stdin drives the toggle: Enter starts or stops a recording, q quits.
	go func() {
		fmt.Println("Press Enter to start/stop recording, q<Enter> to quit.")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "q" || line == "quit" {
				cancel()
				return
			}
			a.Toggle()
		}
		cancel()
	}()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited")
	}
}
