package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tgrelay/tgrelay/internal/config"
	"github.com/tgrelay/tgrelay/internal/irc"
	"github.com/tgrelay/tgrelay/internal/logging"
	"github.com/tgrelay/tgrelay/internal/relay"
	"github.com/tgrelay/tgrelay/internal/storage"
	"github.com/tgrelay/tgrelay/internal/telegram"
)

// Version information - set at build time via ldflags
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Command line flags
	configPath := flag.String("c", "", "Path to optional configuration file")
	showVersion := flag.Bool("v", false, "Show version information and exit")
	showVersionLong := flag.Bool("version", false, "Show version information and exit")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Show version and exit
	if *showVersion || *showVersionLong {
		fmt.Printf("tgrelay version %s\n", version)
		fmt.Printf("Built: %s\n", buildDate)
		fmt.Printf("Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Set version info in irc package
	irc.Version = version
	irc.BuildDate = buildDate
	irc.GitCommit = gitCommit

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyArgs(flag.Args()); err != nil {
		switch {
		case errors.Is(err, config.ErrBadPort):
			fmt.Fprintln(os.Stderr, "Error: Erroneous port.")
		default:
			fmt.Fprintln(os.Stderr, config.Usage)
		}
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, logCloser, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	backend, backendCloser, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backendCloser.Close()

	// a corrupt settings file starts the relay without subscribers
	store, loadErr := storage.Load(backend, logger)
	if loadErr != nil {
		logger.Error().Err(loadErr).Str("file", cfg.SettingsFile).Msg("Unable to open the user settings file")
	}

	bot, err := telegram.New(cfg.Token, telegram.Options{
		WebhookURL: cfg.Webhook.URL,
		Listen:     cfg.Webhook.Listen,
		Secret:     cfg.Webhook.Secret,
	}, logger)
	if err != nil {
		return err
	}

	r := relay.New(relay.Options{
		Room:    relay.RoomIdentity{Name: cfg.Channel, Server: cfg.Server},
		OwnerID: cfg.OwnerID,
	}, store, bot, logger.With().Str("component", "relay").Logger())
	if loadErr != nil {
		r.NotifyOwner(fmt.Sprintf("Unable to open the user settings file (%v).", loadErr))
	}

	client := irc.NewClient(cfg, r, logger)
	r.Attach(client)

	// Signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// a second signal kills the process
	context.AfterFunc(ctx, func() {
		logger.Info().Msg("Shutting down")
		stop()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the IRC loop only ends on shutdown
		defer stop()
		logger.Info().Str("server", cfg.Server).Int("port", cfg.Port).Msg("Connecting to IRC")
		return runIRC(gctx, client)
	})

	g.Go(func() error {
		return bot.Run(gctx, r)
	})

	return g.Wait()
}

// ircSession is the IRC connection lifecycle driven by runIRC
type ircSession interface {
	Connect() error
	Loop()
	Quit(message string)
}

// runIRC connects s and runs its event loop until ctx is done. A shutdown
// requested while the connection is still being set up quits as soon as
// Connect returns.
func runIRC(ctx context.Context, s ircSession) error {
	if err := s.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Quit("Received shutdown signal")
		case <-done:
		}
	}()

	s.Loop()
	return nil
}

// openBackend returns the settings backend selected by the configuration
func openBackend(cfg *config.Config) (storage.Backend, io.Closer, error) {
	switch cfg.Storage {
	case "bolt":
		db, err := storage.OpenBolt(cfg.SettingsFile)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return &storage.JSONFile{Path: cfg.SettingsFile}, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
