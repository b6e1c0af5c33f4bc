package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/config"
	"device-loan-backend/internal/jobs"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/notify"
	"device-loan-backend/internal/repository/postgres"
	"device-loan-backend/internal/resilience"
	"device-loan-backend/internal/service"
)

// App holds the process-wide components shared by the server and the
// cronjob binaries.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Store      *postgres.Store
	Clock      clock.Clock
	Registry   *prometheus.Registry
	Metrics    *metrics.Collector
	Breakers   *resilience.Registry
	Dispatcher *notify.Dispatcher
	Advancer   *notify.WaitlistAdvancer
	Loans      service.LoanService
	Jobs       *jobs.JobRunner
}

// New connects to the database and wires every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	a, err := Wire(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Wire builds the components on top of an open database handle.
func Wire(cfg *config.Config, db *sql.DB) (*App, error) {
	a := &App{
		Config:   cfg,
		DB:       db,
		Store:    postgres.NewStore(db),
		Clock:    clock.NewSystem(),
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewCollector(a.Registry)

	n := cfg.Resilience.Notification
	a.Breakers = resilience.NewRegistry(resilience.BreakerSettings{
		FailureThreshold: n.FailureThreshold,
		ResetTimeout:     n.ResetTimeout,
		MonitoringPeriod: n.MonitoringPeriod,
	}, a.Metrics.BreakerStateChanged)
	// create the email breaker up front so health reports it before first use
	a.Breakers.Get(notify.DependencyEmail)

	sender, err := NewEmailSender(cfg.Email)
	if err != nil {
		return nil, err
	}

	a.Dispatcher = notify.NewDispatcher(
		notify.DispatcherConfig{
			Timeout: n.Timeout,
			Retry: resilience.RetryPolicy{
				MaxAttempts:       n.MaxAttempts,
				InitialDelay:      n.InitialDelay,
				MaxDelay:          n.MaxDelay,
				BackoffMultiplier: n.BackoffMultiplier,
			},
		},
		a.Breakers,
		sender,
		a.Store.UserRepository,
		a.Store.DeviceRepository,
		a.Store.NotificationRepository,
		a.Clock,
		a.Metrics,
	)
	a.Advancer = notify.NewWaitlistAdvancer(a.Store, a.Store.WaitlistRepository, a.Dispatcher, a.Clock, a.Metrics)
	a.Loans = service.NewLoanService(
		a.Store,
		a.Store.ReservationRepository,
		a.Store.LoanRepository,
		a.Store.InventoryRepository,
		a.Advancer,
		a.Clock,
		a.Metrics,
	)
	a.Jobs = jobs.NewJobRunner(a.Advancer, a.Store.LoanRepository, a.Dispatcher, a.Clock, a.Metrics)
	return a, nil
}

// NewEmailSender picks the delivery backend named by cfg.Provider.
func NewEmailSender(cfg config.EmailConfig) (notify.EmailSender, error) {
	switch cfg.Provider {
	case config.EmailProviderSendGrid:
		s := notify.NewSendGridSender(cfg.APIKey, cfg.From, cfg.FromName)
		if cfg.Host != "" {
			s = s.WithHost(cfg.Host)
		}
		logger.Info("Email delivery via SendGrid", "from", cfg.From)
		return s, nil
	case config.EmailProviderLog, "":
		logger.Warn("Email delivery disabled, messages are only logged")
		return notify.NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Provider)
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}
