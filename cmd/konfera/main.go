// konfera es el backend de registro y check-in de la conferencia.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/konfera/internal/cache"
	"github.com/dropDatabas3/konfera/internal/checkin"
	"github.com/dropDatabas3/konfera/internal/config"
	"github.com/dropDatabas3/konfera/internal/email"
	khttp "github.com/dropDatabas3/konfera/internal/http"
	"github.com/dropDatabas3/konfera/internal/keys"
	"github.com/dropDatabas3/konfera/internal/observability/logger"
	"github.com/dropDatabas3/konfera/internal/rate"
	"github.com/dropDatabas3/konfera/internal/registration"
	"github.com/dropDatabas3/konfera/internal/store/core"
	"github.com/dropDatabas3/konfera/internal/store/memory"
	"github.com/dropDatabas3/konfera/internal/store/pg"
	"github.com/dropDatabas3/konfera/internal/ticket"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional; env vars suffice)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		// sin .env está bien: prod usa variables reales
		fmt.Fprintln(os.Stderr, "no .env file, using system environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if err := run(cfg); err != nil {
		log.Fatal("server exited", logger.Err(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.L()

	// Material de firma. Fatal si el PEM configurado no importa: sin clave
	// usable no se puede emitir ni un ticket.
	material, err := keys.LoadPrivateKey(cfg.Keys.PrivatePEM)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	if material.WasGenerated {
		log.Warn("running in demo key mode; configure QR_PRIVATE_KEY_PEM for production")
	}

	// Store
	var store core.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		store = pgStore
	default:
		mem := memory.New()
		seedDevConference(mem, cfg.Conference.Slug)
		store = mem
		log.Warn("using in-memory store; data is lost on restart")
	}
	defer store.Close()

	// Cache de conferencias
	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = cacheClient.Close() }()

	confs := registration.NewConferenceSource(store, cacheClient, cfg.Cache.ConferenceTTL)

	// Email
	var sender email.Sender = email.Noop{}
	if cfg.SMTP.Host != "" {
		s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From,
			cfg.SMTP.Username, cfg.SMTP.Password)
		if cfg.SMTP.TLS != "" {
			s.TLSMode = cfg.SMTP.TLS
		}
		s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		sender = s
	} else {
		log.Warn("SMTP not configured; confirmation emails are disabled")
	}

	// Clave de verificación: la pública configurada si existe, si no la del
	// par de firma.
	verifyKey, err := keys.VerificationKey(material, cfg.Keys.PublicPEM)
	if err != nil {
		return fmt.Errorf("load verification key: %w", err)
	}

	encoder := &ticket.Encoder{BaseURL: cfg.Server.BaseURL}
	regs := registration.NewService(store, confs, material.Private, encoder, sender, cfg.Conference.Slug)
	arbiter := checkin.NewArbiter(store, verifyKey)
	gateAuth := checkin.NewAuthenticator(store, cfg.Gate.DevKeys)

	// Rate limit del registro público
	var limiter rate.Limiter = rate.NoopLimiter{}
	if cfg.Rate.Enabled {
		if cfg.Cache.Kind == "redis" {
			client := rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			defer func() { _ = client.Close() }()
			limiter = rate.NewRedisLimiter(client, "rl:", cfg.Rate.Register.Limit, cfg.RegisterWindow())
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Register.Limit, cfg.RegisterWindow())
		}
	}

	// Métricas
	var poolFn func() *pgxpool.Pool
	if pgStore, ok := store.(*pg.Store); ok {
		poolFn = pgStore.Pool
	}
	metricsHandler, err := khttp.RegisterMetrics(khttp.MetricsConfig{Pool: poolFn})
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	server := khttp.NewServer(khttp.Options{
		Registrations:   regs,
		Arbiter:         arbiter,
		GateAuth:        gateAuth,
		Store:           store,
		ConferenceSlug:  cfg.Conference.Slug,
		AdminKey:        cfg.Admin.APIKey,
		RegisterLimiter: limiter,
		CORSOrigins:     cfg.Server.CORSAllowedOrigins,
		MetricsHandler:  metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.Conference(cfg.Conference.Slug),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seedDevConference carga una conferencia de prueba en el store en memoria,
// con las tarifas de la edición real.
func seedDevConference(mem *memory.Store, slug string) {
	deadline := time.Now().AddDate(0, 6, 0)
	mem.SeedConference(&core.Conference{
		ID:                   "00000000-0000-0000-0000-000000000001",
		Name:                 "Konferenca Shkencore",
		Slug:                 slug,
		RegistrationDeadline: &deadline,
		Currency:             "EUR",
		Fees: map[string]float64{
			"farmacist": 35,
			"teknik":    30,
		},
		CreatedAt: time.Now().UTC(),
	})
}
