package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/merodias-lab/clinic/libs/config"
	"github.com/merodias-lab/clinic/libs/db"
	"github.com/merodias-lab/clinic/libs/httpx"
	"github.com/merodias-lab/clinic/libs/kafkax"
	otelx "github.com/merodias-lab/clinic/libs/otel"
	"github.com/merodias-lab/clinic/libs/runtime"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/handlers"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/outbox"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	policy, err := policyFromEnv()
	if err != nil {
		logger.Error("invalid business hours config", "err", err)
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	idemRepo := storage.NewIdempotencyRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo, idemRepo)
	catalogRepo := storage.NewCatalogRepository(pool)
	contactRepo := storage.NewContactRepository(pool)

	storeTimeout := time.Duration(config.Int("STORE_TIMEOUT_SECONDS", 5)) * time.Second
	manager := lifecycle.NewManager(apptRepo, catalogRepo, storeTimeout)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	apptHandler := handlers.NewAppointmentHandler(manager, apptRepo, policy, logger)
	publicHandler := handlers.NewPublicHandler(catalogRepo, contactRepo, apptRepo, policy, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/services", publicHandler.Services)
	mux.HandleFunc("/api/v1/public/slots", publicHandler.Slots)
	mux.HandleFunc("/api/v1/public/contact", publicHandler.Contact)
	mux.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			apptHandler.Create(w, r)
			return
		}
		apptHandler.List(w, r)
	})
	mux.HandleFunc("/api/v1/appointments/{id}/status", apptHandler.SetStatus)
	mux.HandleFunc("/api/v1/admin/appointments", apptHandler.AdminList)
	mux.HandleFunc("/api/v1/admin/contact", publicHandler.AdminMessages)
	mux.HandleFunc("/api/v1/admin/appointments/{id}/result", apptHandler.AttachResult)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// policyFromEnv builds the business-hours policy, defaulting to the
// clinic's published schedule.
func policyFromEnv() (schedule.Policy, error) {
	p := schedule.DefaultPolicy()
	p.StepMinutes = config.Int("SLOT_STEP_MINUTES", p.StepMinutes)

	var err error
	if p.Weekday.Open, err = schedule.ParseClock(config.String("WEEKDAY_OPEN", "07:00")); err != nil {
		return schedule.Policy{}, err
	}
	if p.Weekday.Close, err = schedule.ParseClock(config.String("WEEKDAY_CLOSE", "18:00")); err != nil {
		return schedule.Policy{}, err
	}
	if p.Saturday.Open, err = schedule.ParseClock(config.String("SATURDAY_OPEN", "07:00")); err != nil {
		return schedule.Policy{}, err
	}
	if p.Saturday.Close, err = schedule.ParseClock(config.String("SATURDAY_CLOSE", "12:00")); err != nil {
		return schedule.Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return schedule.Policy{}, err
	}
	return p, nil
}
