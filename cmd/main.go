// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/court-reservation/internal/auth"
	"github.com/Shivanand-hulikatti/court-reservation/internal/config"
	"github.com/Shivanand-hulikatti/court-reservation/internal/database"
	"github.com/Shivanand-hulikatti/court-reservation/internal/handler"
	"github.com/Shivanand-hulikatti/court-reservation/internal/logger"
	"github.com/Shivanand-hulikatti/court-reservation/internal/notify"
	"github.com/Shivanand-hulikatti/court-reservation/internal/obs"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository"
	"github.com/Shivanand-hulikatti/court-reservation/internal/repository/memory"
	"github.com/Shivanand-hulikatti/court-reservation/internal/scheduler"
	"github.com/Shivanand-hulikatti/court-reservation/internal/service"
)

const (
	serviceName     = "court-reservation"
	shutdownTimeout = 10 * time.Second
)

// stores groups the storage ports the services depend on.
type stores struct {
	venues   service.VenueDirectory
	slots    service.SlotStore
	bookings service.BookingStore
	close    func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// ── 1. Configuration, logging and tracing ────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogPretty).With().Str("service", serviceName).Logger()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Every resource registers its cleanup as soon as it exists, so an
	// early return still releases whatever was opened before it.
	cleanup := newClosers(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		cleanup.close(shutdownCtx)
		log.Info().Msg("shutdown complete")
	}()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	cleanup.add("tracer", shutdownTracer)

	// ── 2. Storage ───────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	cleanup.add("storage", func(context.Context) error {
		st.close()
		return nil
	})

	// ── 3. Booking events ────────────────────────────────────────────────
	sinks := []notify.Sink{notify.NewLogSink(log)}
	if cfg.RabbitURL != "" {
		amqpSink, err := notify.DialAMQP(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		cleanup.add("rabbitmq", func(context.Context) error { return amqpSink.Close() })
		sinks = append(sinks, amqpSink)
		log.Info().Str("exchange", cfg.BookingExchange).Msg("publishing booking events to rabbitmq")
	}
	events := notify.NewDispatcher(log, 256, sinks...)
	cleanup.add("booking events", events.Close)

	// ── 4. Wire up layers ────────────────────────────────────────────────
	rules := service.RulesFromConfig(cfg, loc)
	catalog := service.NewSlotCatalog(st.venues, st.slots, rules, log)
	index := service.NewAvailabilityIndex(st.slots, rules)
	ledger := service.NewBookingLedger(st.venues, st.slots, st.bookings, rules, events, log)
	coord := service.NewReservationCoordinator(ledger, cfg.RetryBackoff, log)
	bookingHandler := handler.NewBookingHandler(catalog, index, ledger, coord, log)

	sweeper, err := scheduler.New(cfg.SweepSchedule, ledger, cfg.StorageTimeout, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	sweeper.Start()
	cleanup.add("sweeper", sweeper.Stop)

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(bookingHandler, auth.NewVerifier(cfg.JWTSecret), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	cleanup.add("http server", srv.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Block until SIGINT, SIGTERM or a listener failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}

	return nil
}

// openStores connects the configured storage backend.
func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		store := memory.New()
		courts := store.SeedDemo()
		log.Warn().Strs("court_ids", courts).Str("venue_id", memory.DemoVenueID).
			Msg("using in-memory storage with demo data; nothing is persisted")
		return &stores{venues: store, slots: store, bookings: store, close: func() {}}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("host", cfg.DB.Host).Str("db", cfg.DB.Name).Msg("connected to postgres")

	return postgresStores(pool), nil
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		venues:   repository.NewCourtRepository(pool),
		slots:    repository.NewSlotRepository(pool),
		bookings: repository.NewBookingRepository(pool),
		close:    pool.Close,
	}
}
