package main

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/ingestion"
	"TokenLedger/internal/observability"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/projection"
	"TokenLedger/internal/query"
	"TokenLedger/internal/server"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := observability.NewLogger("tokenledger")
	logger.Info().Msg("TokenLedger starting")

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	if os.Getenv("GOGC") == "" {
		logger.Warn().Msg("GOGC not set, recommend GOGC=400 for production")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("Postgres connected")

	migrator := persistence.NewMigrator(db, cfg.MigrationsDir, observability.NewLogger("migrate"))
	if err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	healthChecker.AddCheck("postgres", db.PingContext)

	// --- Engine ---
	// The persist channel blocks (backpressure); the projection channel drops.
	persistChan := make(chan core.CoreOutput, cfg.PersistChanSize)
	projectionChan := make(chan core.CoreOutput, cfg.ProjectionChanSize)

	dbChecker := persistence.NewPostgresIdempotencyChecker(db)
	engine := core.NewEngine(cfg.EngineConfig(), 1, persistChan, projectionChan, dbChecker, metrics)
	engine.SetLogger(observability.NewLogger("core"))

	// --- Genesis: the log only replays under the config it was written with ---
	genesis := cfg.EngineConfig().Genesis()
	fp := genesis.Fingerprint()
	created, err := persistence.NewGenesisStore(db).Ensure(ctx, genesis)
	if err != nil {
		logger.Fatal().Err(err).Msg("genesis check failed")
	}
	logger.Info().
		Str("deployer", genesis.Deployer).
		Str("token_address", genesis.TokenAddress).
		Str("market_address", genesis.MarketAddress).
		Str("presale_cap", genesis.PresaleCap).
		Str("presale_price", genesis.PresalePrice).
		Str("main_price", genesis.MainPrice).
		Str("fingerprint", hex.EncodeToString(fp[:])).
		Bool("recorded", created).
		Msg("genesis config")

	// --- Recovery: verified snapshot + log replay ---
	snapMgr := persistence.NewSnapshotManager(db)
	recovered, err := persistence.Recover(ctx, engine, snapMgr, metrics, observability.NewLogger("recovery"))
	if err != nil {
		logger.Fatal().Err(err).Msg("recovery failed")
	}
	logger.Info().
		Int64("snapshot_sequence", recovered.SnapshotSequence).
		Int64("replayed", recovered.Replayed).
		Int64("next_sequence", recovered.NextSequence).
		Msg("recovery complete")

	recent, err := dbChecker.RecentRequestIDs(ctx, cfg.DedupWarmLimit)
	if err != nil {
		logger.Warn().Err(err).Msg("load recent request ids")
	} else {
		engine.WarmLRU(recent)
	}

	// --- Workers ---
	var logWorkers, pubWorker sync.WaitGroup
	errChan := make(chan error, 10)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Log workers start before Bootstrap, which emits.
	persistWorker := persistence.NewPersistenceWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics, observability.NewLogger("persistence"))
	projWorker := projection.NewProjectionWorker(db, projectionChan, metrics, observability.NewLogger("projection"))

	// --- NATS ---
	natsLogger := observability.NewLogger("nats")
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, natsLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	healthChecker.AddCheck("nats", func(context.Context) error {
		if nc.Status() != nats.CONNECTED {
			return errors.New(nc.Status().String())
		}
		return nil
	})

	if err := ingestion.EnsureStreams(ctx, js, natsLogger); err != nil {
		logger.Fatal().Err(err).Msg("ensure NATS streams")
	}
	if err := ingestion.EnsureOutboundStream(ctx, js, natsLogger); err != nil {
		logger.Fatal().Err(err).Msg("ensure outbound stream")
	}

	publisher := ingestion.NewOutboundPublisher(js, cfg.PublishChanSize, metrics, observability.NewLogger("publisher"))
	persistWorker.OnCommit(publisher.Offer)

	logWorkers.Add(2)
	go func() {
		defer logWorkers.Done()
		report(errChan, "persistence", persistWorker.Run(workerCtx))
	}()
	go func() {
		defer logWorkers.Done()
		report(errChan, "projection", projWorker.Run(workerCtx))
	}()
	pubWorker.Add(1)
	go func() {
		defer pubWorker.Done()
		report(errChan, "publisher", publisher.Run(workerCtx))
	}()

	if err := engine.Bootstrap(cfg.Deployer, cfg.InitialAdmins, cfg.InitialWhitelist, time.Now().UTC()); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}

	// --- Ingress: NATS commands, gRPC, HTTP ---
	var ingress sync.WaitGroup

	rawChan := make(chan ingestion.RawCommand, 4096)
	subscriber := ingestion.NewNATSSubscriber(js, rawChan, natsLogger)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		logger.Fatal().Err(err).Msg("nats subscribe")
	}
	dispatcher := ingestion.NewDispatcher(engine, rawChan, metrics, observability.NewLogger("dispatcher"))

	svc := server.NewLedgerService(server.ServiceDeps{
		Engine:      engine,
		Queries:     query.NewQueryService(db),
		DB:          db,
		SnapshotMgr: snapMgr,
		Logger:      observability.NewLogger("service"),
	})
	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, &server.ServerDeps{
		Service:       svc,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        observability.NewLogger("server"),
	})

	snapshotWorker := persistence.NewSnapshotWorker(engine, snapMgr, cfg.SnapshotEvery, cfg.SnapshotInterval, metrics, observability.NewLogger("snapshot"))

	ingress.Add(5)
	go func() {
		defer ingress.Done()
		report(errChan, "dispatcher", dispatcher.Run(ctx))
	}()
	go func() {
		defer ingress.Done()
		report(errChan, "grpc", grpcServer.StartGRPC(ctx))
	}()
	go func() {
		defer ingress.Done()
		report(errChan, "http", grpcServer.StartHTTPGateway(ctx))
	}()
	go func() {
		defer ingress.Done()
		report(errChan, "snapshot", snapshotWorker.Run(ctx))
	}()
	go func() {
		defer ingress.Done()
		report(errChan, "metrics", serveMetrics(ctx, cfg.MetricsAddr, logger))
	}()

	healthChecker.SetReady(true)
	logger.Info().
		Int64("sequence", engine.GetSequence()).
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("TokenLedger ready")

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	// --- Graceful shutdown ---
	// Stop ingress first so nothing else reaches the engine, then let the
	// workers drain what it already emitted.
	healthChecker.SetReady(false)
	subscriber.Stop()
	cancel()
	ingress.Wait()

	// nothing can reach emit after Close returns, even a handler that
	// outlived its server's drain timeout
	engine.Close()
	close(persistChan)
	close(projectionChan)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// persistence and projection return once their channels are drained
	if !waitTimeout(shutdownCtx, &logWorkers) {
		logger.Warn().Msg("timed out waiting for persistence flush")
	}
	stopWorkers()
	pubWorker.Wait()
	if n := publisher.Drain(shutdownCtx); n > 0 {
		logger.Info().Int("events", n).Msg("published remaining envelopes")
	}

	// Take a due snapshot and verify pending ones against the flushed log.
	snapshotWorker.Tick(shutdownCtx)

	logger.Info().Int64("sequence", engine.GetSequence()-1).Msg("TokenLedger shutdown complete")
}

func report(errChan chan<- error, name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	select {
	case errChan <- &workerError{name: name, err: err}:
	default:
	}
}

type workerError struct {
	name string
	err  error
}

func (e *workerError) Error() string { return e.name + ": " + e.err.Error() }
func (e *workerError) Unwrap() error { return e.err }

// waitTimeout waits for wg or ctx, reporting whether wg finished.
func waitTimeout(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutCtx)
	}()
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
