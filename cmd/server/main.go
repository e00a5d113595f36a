package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/booking"
	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/logging"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/payment"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/repository/memory"
	"github.com/iliyamo/hotel-reservation/internal/router"
	"github.com/iliyamo/hotel-reservation/internal/service"
	"github.com/iliyamo/hotel-reservation/internal/sweeper"
	"github.com/iliyamo/hotel-reservation/internal/telemetry"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

type storage struct {
	store  repository.Store
	users  repository.UserStore
	tokens repository.TokenStore
	db     *sql.DB
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)
	bookingCfg := config.LoadBookingConfig()
	paymentCfg := config.LoadPaymentConfig()
	eventsCfg := config.LoadEventsConfig()

	tp := telemetry.Setup(config.LoadTracingConfig())
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("tracer shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, bookingCfg, log)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting, catalog cache and webhook dedup disabled")
	} else {
		defer rdb.Close()
	}

	events := service.New(eventsCfg, log)
	if eventsCfg.ConsumerEnabled {
		audit := queue.NewAuditLog(eventsCfg.AuditLogPath)
		switch eventsCfg.Bus {
		case "rabbitmq":
			go queue.StartRabbitConsumer(ctx, eventsCfg.RabbitURL, eventsCfg.RabbitQueue, audit, log)
		case "kafka":
			go queue.StartKafkaConsumer(ctx, eventsCfg.KafkaBrokers, eventsCfg.KafkaTopic, audit, log)
		}
	}

	var (
		gateway payment.Gateway
		sandbox *payment.Sandbox
	)
	switch paymentCfg.Driver {
	case "sandbox":
		sandbox = payment.NewSandbox(cfg.FrontendURL)
		gateway = sandbox
		log.Warn("payment driver is sandbox: no real charges are made")
	default:
		gateway = payment.NewPayMongo(paymentCfg.APIURL, paymentCfg.SecretKey, payment.NewHTTPClient(bookingCfg.GatewayTimeout))
	}

	sw := sweeper.New(st.store, events, log, bookingCfg.StaleAfter, nil)
	svc := booking.New(booking.Deps{
		Store:       st.store,
		Gateway:     gateway,
		Sweeper:     sw,
		Events:      events,
		Log:         log,
		Booking:     bookingCfg,
		Payment:     paymentCfg,
		FrontendURL: cfg.FrontendURL,
		Location:    cfg.Location,
	})

	recon := payment.ReconcilerDeps{
		Store:          st.store,
		Gateway:        gateway,
		Events:         events,
		Log:            log,
		WebhookSecret:  paymentCfg.WebhookSecret,
		GatewayTimeout: bookingCfg.GatewayTimeout,
	}
	if rdb != nil && paymentCfg.DedupEnabled {
		recon.Dedup = payment.NewRedisDeduper(rdb, payment.DedupTTL)
	}
	reconciler := payment.NewReconciler(recon)

	deps := router.Deps{
		Cfg:       cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     rdb,
		Log:       log,
		Auth:      handler.NewAuthHandler(cfg, st.users, st.tokens, svc, log),
		Rooms:     handler.NewRoomHandler(svc),
		Payment:   handler.NewPaymentHandler(svc, reconciler, log),
		IMS:       handler.NewIMSHandler(svc, st.users, log),
	}
	if sandbox != nil && cfg.Env != "prod" && cfg.Env != "production" {
		deps.Dev = &handler.DevHandler{Bookings: svc, Reconciler: reconciler, Sandbox: sandbox, Store: st.store}
	}
	e := router.New(deps)

	c := cron.New()
	if _, err := sw.Schedule(c, bookingCfg.SweepCron); err != nil {
		log.WithError(err).WithField("spec", bookingCfg.SweepCron).Fatal("invalid SWEEP_CRON")
	}
	if _, err := c.AddFunc(tokenPurgeCron, func() { purgeTokens(ctx, st.tokens, log) }); err != nil {
		log.WithError(err).Fatal("schedule refresh token purge")
	}
	c.Start()

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "storage": cfg.StorageDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := events.Close(); err != nil {
		log.WithError(err).Warn("event bus close")
	}
}

// openStorage connects the configured driver.  The memory driver seeds the
// default inventory and, when DEV_ADMIN_EMAIL and DEV_ADMIN_PASSWORD are
// set, an Admin account for the dashboard.
func openStorage(ctx context.Context, cfg config.Config, bc config.BookingConfig, log *logrus.Logger) (storage, error) {
	if cfg.StorageDriver == "memory" {
		mem := memory.NewSeeded(bc.LockWait)
		if email, pass := os.Getenv("DEV_ADMIN_EMAIL"), os.Getenv("DEV_ADMIN_PASSWORD"); email != "" && pass != "" {
			hash, err := utils.HashPassword(pass, cfg.BcryptCost)
			if err != nil {
				return storage{}, err
			}
			admin := model.User{FirstName: "Dev", LastName: "Admin", Email: email, PasswordHash: hash, Role: model.RoleAdmin}
			if err := mem.CreateUser(ctx, &admin); err != nil {
				return storage{}, err
			}
			log.WithField("email", admin.Email).Info("seeded dev admin account")
		}
		log.Warn("using in-memory storage: data is lost on restart")
		return storage{store: mem, users: mem, tokens: mem}, nil
	}

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return storage{}, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return storage{}, err
	}
	return storage{
		store:  repository.NewMySQLStore(db, bc.LockWait),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		db:     db,
	}, nil
}

// tokenPurgeCron clears dead refresh tokens once a night.
const tokenPurgeCron = "30 3 * * *"

func purgeTokens(ctx context.Context, tokens repository.TokenStore, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := tokens.PurgeRefresh(ctx, time.Now().UTC())
	if err != nil {
		log.WithError(err).Warn("refresh token purge failed")
		return
	}
	if n > 0 {
		log.WithField("purged", n).Info("refresh tokens purged")
	}
}
