package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deckshot/internal/browser"
	"deckshot/internal/gateway/auth"
	"deckshot/internal/gateway/config"
	"deckshot/internal/gateway/handler"
	"deckshot/internal/gateway/server"
	"deckshot/internal/gateway/service/deck"
	"deckshot/internal/gateway/service/progress"

	"go.uber.org/zap"
)

const trackerHistory = 256

type App struct {
	server  *server.Server
	service *deck.Service
	closers []func() error
	logger  *zap.Logger
}

// New wires the service graph from cfg. Backends that are not configured
// fall back to in-memory stores, which config validation only allows in
// local environments.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	stores, err := initStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, stores.close...)

	verifier, err := initVerifier(ctx, cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	driver := browser.NewRodDriver(browser.Config{
		Bin:            cfg.Browser.Bin,
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	}, logger)
	tracker := progress.NewTracker(trackerHistory)
	a.service = deck.NewService(
		deck.NewAcquirer(driver, deckOptions(cfg.Deck), logger),
		stores.artifacts,
		stores.records,
		tracker,
		deck.ServiceConfig{MaxSessions: cfg.Deck.MaxSessions, Timeout: cfg.Deck.AcquisitionTimeout},
		logger,
	)

	mux := server.NewMux(server.Handlers{
		Deck: handler.NewDeckHandler(a.service, handler.DeckHandlerConfig{
			PushToken:          cfg.PushToken,
			DirectRequireToken: cfg.DirectRequireToken,
		}, logger),
		User:        handler.NewUserHandler(stores.records, logger),
		Acquisition: handler.NewAcquisitionHandler(tracker, logger),
		Verifier:    verifier,
	}, cfg.AllowedOrigins, logger)
	a.server = server.New(cfg.Port, mux, logger)

	return a, nil
}

func deckOptions(c config.DeckConfig) deck.Options {
	opts := deck.DefaultOptions()
	opts.SiteURL = c.SiteURL
	opts.SettleDelay = c.SettleDelay
	opts.NavigationTimeout = c.NavigationTimeout
	opts.VisibleTimeout = c.VisibleTimeout
	opts.PopupTimeout = c.PopupTimeout
	opts.ArtifactTimeout = c.ArtifactTimeout
	opts.Selectors.NotFound = c.NotFoundSelector
	return opts
}

func initVerifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.Verifier, error) {
	if cfg.FirebaseProjectID == "" {
		logger.Warn("FIREBASE_PROJECT_ID not set; /saveUser rejects every token")
		return auth.DenyAll, nil
	}
	v, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	return v, nil
}

// Service exposes the pipeline for one-shot runs outside the HTTP server.
func (a *App) Service() *deck.Service {
	return a.service
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
