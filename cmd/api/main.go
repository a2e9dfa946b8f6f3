package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/billing"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/infra/google"
	"server/internal/middleware"
	"server/internal/providers/avatar"
	"server/internal/quota"
	"server/internal/storage"
)

const (
	sessionSweepEvery = 10 * time.Minute
	sessionIdleTTL    = 30 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}

	countryResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var countryLookup middleware.CountryLookup
	if countryResolver != nil {
		countryLookup = countryResolver.CountryCode
	}

	users := repo.NewUserRepository(dbpool)
	counters := repo.NewCounterRepository(dbpool)
	resources := repo.NewResourceCounters(dbpool)
	entitlements := repo.NewEntitlementRepository(dbpool)

	resolver := quota.NewResolver(users)
	sessions := quota.NewManager(counters, logger)
	gate := quota.NewGate(resolver, counters, resources, cfg.FreeDownloadLimit, logger)
	activator := billing.NewActivator(entitlements, logger)
	checkout := billing.NewCheckoutClient(billing.CheckoutOptions{
		SecretKey:  cfg.StripeSecretKey,
		BaseURL:    cfg.StripeBaseURL,
		PriceID:    cfg.StripePriceID,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
	})

	app := &handlers.App{
		SQL:       infra.NewSQLRunner(dbpool, logger),
		Logger:    logger,
		Config:    cfg,
		JWTSecret: cfg.JWTSecret,
		Verifier:  google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		Users:     users,
		Sessions:  sessions,
		Gate:      gate,
		Resolver:  resolver,
		Counters:  counters,
		Activator: activator,
		Checkout:  checkout,
		Store:     store,
		Avatars:   avatar.NewDiceBear(cfg.AvatarBaseURL),
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		DefaultLocale:  cfg.DefaultLocale,
		AllowedOrigins: []string{cfg.CORSAllowedOrigin},
		RateLimit:      cfg.RateLimitPerMin,
		CountryLookup:  countryLookup,
		StaticDir:      store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(sessionSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := sessions.SweepIdle(sessionIdleTTL); n > 0 {
					logger.Debug().Int("sessions", n).Msg("idle quota sessions dropped")
				}
			}
		}
	}()

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Let the optimistic counter writes settle before the pool closes.
	gate.Wait()
	logger.Info().Msg("server stopped")
}
