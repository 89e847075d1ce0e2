package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"invitation-site/internal/config"
	"invitation-site/internal/guestlist"
	"invitation-site/internal/handler"
	"invitation-site/internal/locale"
	"invitation-site/internal/metrics"
	"invitation-site/internal/models"
	"invitation-site/internal/render"
	"invitation-site/internal/storage"
	"invitation-site/internal/web"
	"invitation-site/internal/whatsapp"
)

func main() {
	list := flag.Bool("list", false, "print the confirmed guests and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *list); err != nil {
		logger.Error().Err(err).Msg("Exiting")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, list bool) error {
	bundle, err := locale.Load(logger)
	if err != nil {
		return err
	}
	if !bundle.Supports(cfg.Locale) {
		return fmt.Errorf("unsupported SITE_LOCALE %q, available: %s", cfg.Locale, strings.Join(bundle.Languages(), ", "))
	}
	tr := bundle.Translator(cfg.Locale)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	guests := guestlist.New(store, logger)

	if list {
		printGuests(guests.FetchOnce(ctx))
		return nil
	}

	metrics.MustRegister()
	guests.OnSnapshot(metrics.ObserveSnapshot)

	rsvp := handler.NewRSVPHandler(store, tr, &handler.Config{
		ChoiceTTL:     cfg.ChoiceTTL,
		NotifyTimeout: cfg.WhatsAppNotifyTimeout,
	}, logger)

	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.NewService(ctx, &whatsapp.Config{
			DataDir:    cfg.WhatsAppDataDir,
			HostPhones: cfg.WhatsAppHostPhones,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize WhatsApp: %w", err)
		}
		wa.ServeGuestQueries(ctx, guests.Guests)

		logger.Info().Msg("Connecting to WhatsApp...")
		if err := wa.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to WhatsApp: %w", err)
		}
		defer wa.Disconnect()

		rsvp.SetNotifier(wa)
	}

	server := web.NewServer(web.Deps{
		RSVP:       rsvp,
		Guests:     guests,
		Renderer:   render.New(tr, render.WithLocation(cfg.Location())),
		Translator: tr,
		Lang:       cfg.Locale,
		Event:      cfg.Event,
		Logger:     logger,
	})

	guests.Open(ctx, server.Publish)
	defer guests.Close()

	return server.Run(ctx, cfg.HTTPAddr)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var store storage.Store
	switch cfg.StoreBackend {
	case config.BackendFile:
		fileStore, err := storage.NewFileStore(cfg.StorePath())
		if err != nil {
			return nil, err
		}
		store = fileStore
	default:
		sqliteStore, err := storage.NewSQLiteStore(ctx, cfg.StorePath())
		if err != nil {
			return nil, err
		}
		store = sqliteStore
	}
	logger.Info().Str("backend", cfg.StoreBackend).Str("path", cfg.StorePath()).Msg("Guest store ready")

	if cfg.RedisAddr == "" {
		return store, nil
	}

	relayed := storage.NewRelayedStore(store, cfg.RedisAddr, logger)
	if err := relayed.Ping(ctx); err != nil {
		relayed.Close()
		return nil, err
	}
	go func() {
		if err := relayed.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Relay stopped")
		}
	}()
	return relayed, nil
}

func printGuests(guests []models.Guest) {
	if len(guests) == 0 {
		fmt.Println("No guests found.")
		return
	}

	fmt.Printf("📋 Confirmed guests (%d total):\n", len(guests))
	fmt.Println(strings.Repeat("-", 60))
	for _, guest := range guests {
		fmt.Printf("Name: %s\n", guest.Name)
		fmt.Printf("Date: %s\n", guest.Date.Format("2006-01-02 15:04:05"))
		fmt.Println(strings.Repeat("-", 60))
	}
}
