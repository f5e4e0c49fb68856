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

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"disputeflow/auth"
	"disputeflow/db"
	"disputeflow/dealer"
	"disputeflow/disputecase"
	"disputeflow/evidence"
	"disputeflow/mediation"
	"disputeflow/outbox"
	"disputeflow/participant"
	"disputeflow/sla"
	"disputeflow/sweep"
	"disputeflow/template"
	"disputeflow/timeline"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "disputeflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("sweep_interval", 5*time.Minute)
	v.SetDefault("sweep_jitter", 30*time.Second)
	v.SetDefault("sweep_batch_size", 100)
	v.SetEnvPrefix("DISPUTEFLOW")
	v.AutomaticEnv()

	connString := v.GetString("database_url")
	if connString == "" {
		return fmt.Errorf("DISPUTEFLOW_DATABASE_URL is required")
	}
	jwtSecret := v.GetString("jwt_secret")
	if jwtSecret == "" {
		return fmt.Errorf("DISPUTEFLOW_JWT_SECRET is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	recorder := timeline.NewRecorder(pool)
	enqueuer := outbox.NewEnqueuer()
	resolver := sla.NewResolver(sla.NewStore(pool), logger)

	caseRepo := disputecase.NewRepository(pool)
	caseService := disputecase.NewService(pool, caseRepo, resolver, recorder, enqueuer)
	evidenceService := evidence.NewService(pool, evidence.NewRepository(pool), recorder)
	mediationService := mediation.NewService(pool, mediation.NewRepository(pool), recorder)
	participantService := participant.NewService(pool, participant.NewRepository(pool), recorder)
	authService := auth.NewService(auth.NewRepository(pool), jwtSecret)
	dealerService := dealer.NewService(dealer.NewRepository(pool))

	monitor := sweep.NewMonitor(caseRepo, caseService, logger).
		WithInterval(v.GetDuration("sweep_interval"), v.GetDuration("sweep_jitter")).
		WithBatchSize(v.GetInt("sweep_batch_size"))

	server := &Server{
		logger:       logger,
		auth:         authService,
		cases:        caseService,
		evidence:     evidenceService,
		mediation:    mediationService,
		participants: participantService,
		timeline:     recorder,
		dealers:      dealerService,
		templates:    template.NewStore(pool),
	}

	httpServer := &http.Server{
		Addr:              v.GetString("http_addr"),
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return monitor.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
