// Package app builds the object graph shared by the API server and the
// admin CLI: stores, outbound adapters, services and handlers.
package app

import (
	"context"
	"database/sql"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/fixmybike-booking/internal/config"
	"github.com/iliyamo/fixmybike-booking/internal/database"
	"github.com/iliyamo/fixmybike-booking/internal/handler"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/mail"
	"github.com/iliyamo/fixmybike-booking/internal/memstore"
	"github.com/iliyamo/fixmybike-booking/internal/middleware"
	"github.com/iliyamo/fixmybike-booking/internal/otp"
	"github.com/iliyamo/fixmybike-booking/internal/payment"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
	"github.com/iliyamo/fixmybike-booking/internal/repository"
	"github.com/iliyamo/fixmybike-booking/internal/router"
	"github.com/iliyamo/fixmybike-booking/internal/service"
)

// Stores is one backend for every persisted entity.
type Stores struct {
	Users          service.UserStore
	Bookings       service.BookingStore
	Notifications  service.NotificationStore
	ServiceRecords service.ServiceRecordStore
}

// MemoryStores keeps everything in process memory.
func MemoryStores() Stores {
	s := memstore.New()
	return Stores{
		Users:          s.Users(),
		Bookings:       s.Bookings(),
		Notifications:  s.Notifications(),
		ServiceRecords: s.ServiceRecords(),
	}
}

// SQLStores backs every entity with MySQL.
func SQLStores(db *sql.DB) Stores {
	return Stores{
		Users:          repository.NewUserRepo(db),
		Bookings:       repository.NewBookingRepo(db),
		Notifications:  repository.NewNotificationRepo(db),
		ServiceRecords: repository.NewServiceRecordRepo(db),
	}
}

// App holds the wired services.  Close releases every connection it
// opened.
type App struct {
	Cfg    config.Config
	Stores Stores
	DB     *sql.DB
	Redis  *redis.Client

	Pending otp.PendingStore
	Events  queue.Publisher

	Auth          *service.AuthService
	Users         *service.UserService
	Bookings      *service.BookingService
	Notifications *service.NotificationService
	Stats         *service.StatsService
	Payments      *payment.Service

	closers []io.Closer
}

// New opens the configured backends and wires the services.  Redis is
// optional: without it the OTP store stays in memory and rate limiting is
// off.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Cfg: cfg}

	if cfg.UseMemoryStore {
		logger.Warn("using in-memory store; data is lost on restart")
		a.Stores = MemoryStores()
	} else {
		db, err := database.Open(cfg)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.closers = append(a.closers, db)
		a.Stores = SQLStores(db)
	}

	if rdb, err := config.NewRedisClient(ctx); err != nil {
		logger.Warnf("redis unavailable, rate limiting disabled: %v", err)
	} else {
		a.Redis = rdb
		a.closers = append(a.closers, rdb)
	}

	a.Pending = otp.NewMemoryStore()
	if cfg.OTPStore == "redis" {
		if a.Redis != nil {
			a.Pending = otp.NewRedisStore(a.Redis)
		} else {
			logger.Warn("OTP_STORE=redis but redis is unavailable; using memory")
		}
	}

	a.Events = queue.Publisher(queue.NopPublisher{})
	if cfg.EventsEnabled {
		p := queue.NewAMQPPublisher(cfg.RabbitURL)
		a.Events = p
		a.closers = append(a.closers, p)
	}

	mailer, sms := outbound(cfg)
	a.wire(mailer, sms)
	return a, nil
}

// outbound picks real SMTP and Twilio senders when configured and the log
// senders otherwise.
func outbound(cfg config.Config) (mail.Mailer, mail.SMSSender) {
	var m mail.Mailer = mail.LogMailer{Production: cfg.IsProduction()}
	if cfg.SMTPHost != "" {
		m = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		logger.Warn("SMTP_HOST not set; emails are only logged")
	}
	var s mail.SMSSender = mail.LogSMS{}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFrom != "" {
		s = mail.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	}
	return m, s
}

func (a *App) wire(mailer mail.Mailer, sms mail.SMSSender) {
	cfg, st := a.Cfg, a.Stores
	a.Notifications = service.NewNotificationService(st.Notifications, st.Users, st.Bookings, cfg.Location, cfg.NotificationRetention, nil)
	a.Auth = service.NewAuthService(st.Users, a.Pending, mailer, sms, service.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		JWTTTL:     cfg.JWTTTL,
		BcryptCost: cfg.BcryptCost,
	}, nil)
	a.Users = service.NewUserService(st.Users, st.Bookings, st.Notifications, st.ServiceRecords, cfg.BcryptCost, cfg.OwnerPassword)
	a.Bookings = service.NewBookingService(st.Bookings, st.Users, st.ServiceRecords, a.Notifications, mailer, a.Events,
		service.BookingConfig{StrictWorkflow: cfg.StrictWorkflow, Location: cfg.Location}, nil)
	a.Stats = service.NewStatsService(st.Bookings, cfg.Location, nil)
	a.Payments = payment.NewService(cfg.StripeSecretKey, cfg.PaymentCurrency, cfg.PaymentSuccessURL)
}

// Migrate creates the MySQL schema.  It is a no-op on the memory store.
func (a *App) Migrate(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return database.Migrate(ctx, a.DB)
}

// Routes builds the handler set and route guards.
func (a *App) Routes(rl config.RateLimitConfig) (router.Handlers, router.Guards) {
	h := router.Handlers{
		Auth:          handler.NewAuthHandler(a.Auth, a.Users),
		Users:         handler.NewUserHandler(a.Users, a.Cfg.AdminResetSecret),
		Bookings:      handler.NewBookingHandler(a.Bookings, a.Stats),
		Notifications: handler.NewNotificationHandler(a.Notifications),
		Payments:      handler.NewPaymentHandler(a.Payments, a.Bookings, a.Users, a.Cfg.PaymentCurrency, a.Cfg.StripeWebhookSecret),
	}
	g := router.Guards{
		JWT:       middleware.JWTAuth(a.Cfg.JWTSecret, a.Stores.Users),
		Limit:     middleware.NewTokenBucket(rl, a.Redis),
		AuthLimit: middleware.NewTokenBucket(rl.Auth(), a.Redis),
	}
	return h, g
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Error("close", err)
		}
	}
}
