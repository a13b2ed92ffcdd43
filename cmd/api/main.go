package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/credit"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/payment"
	"server/internal/ratelimit"
	"server/internal/translation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	provider, err := translation.NewOpenAIProvider(translation.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure translation provider")
	}

	users := repo.NewUserRepository(dbpool)
	ledger := repo.NewLedgerRepository(dbpool)
	purchases := repo.NewPurchaseRepository(dbpool)
	cache := repo.NewTranslationCacheRepository(dbpool)

	engine := credit.NewEngine(ledger, logger)
	translator := translation.NewService(provider, cache, logger, translation.DefaultMaxChunk)
	applier := payment.NewApplier(users, purchases, engine, logger)

	// The limiter is owned here: created at start, swept in the background,
	// gone at shutdown.
	limiter := ratelimit.New()
	go limiter.Run(ctx, cfg.RateLimitSweepInterval)

	app := &handlers.App{
		Cfg:        cfg,
		Logger:     logger,
		SQL:        infra.NewSQLRunner(dbpool, logger),
		Users:      users,
		Engine:     engine,
		Limiter:    limiter,
		Applier:    applier,
		Translator: translator,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
