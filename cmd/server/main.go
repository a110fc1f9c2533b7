package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/fixmybike-booking/internal/app"
	"github.com/iliyamo/fixmybike-booking/internal/config"
	"github.com/iliyamo/fixmybike-booking/internal/handler"
	"github.com/iliyamo/fixmybike-booking/internal/jobs"
	"github.com/iliyamo/fixmybike-booking/internal/logger"
	"github.com/iliyamo/fixmybike-booking/internal/otp"
	"github.com/iliyamo/fixmybike-booking/internal/queue"
	"github.com/iliyamo/fixmybike-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment may be set already
	cfg := config.Load()
	logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logger.Fatalf("logger: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	if cfg.OwnerBootstrap {
		if u, created, err := a.Users.BootstrapOwner(ctx); err != nil {
			logger.Error("owner bootstrap failed", err)
		} else if created {
			logger.Infof("owner account %q created", u.Username)
		}
	}

	job := jobs.NewReminderJob(a.Notifications, cfg.ReminderInterval, cfg.CleanupInterval)
	job.Start(ctx)
	defer job.Stop()

	otp.StartSweeper(ctx, a.Pending, cfg.OTPSweepInterval)

	if cfg.AuditConsumerEnabled {
		go func() {
			c := queue.AuditConsumer{URL: cfg.RabbitURL}
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger.Logger()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsProduction())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, handler.AdminResetHeader},
		AllowCredentials: true,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	h, g := a.Routes(config.LoadRateLimitConfig())
	router.Register(e, h, g)

	addr := ":" + cfg.Port
	go func() {
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", err)
	}
}
