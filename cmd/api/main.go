package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"laundry-pickup/internal/api"
	"laundry-pickup/internal/config"
	"laundry-pickup/internal/db"
	"laundry-pickup/internal/modules/admin"
	"laundry-pickup/internal/modules/catalog"
	"laundry-pickup/internal/modules/coupons"
	"laundry-pickup/internal/modules/logistics"
	"laundry-pickup/internal/modules/orders"
	"laundry-pickup/internal/modules/payments"
	"laundry-pickup/internal/modules/realtime"
	"laundry-pickup/internal/modules/users"
	"laundry-pickup/internal/scheduling"
	"laundry-pickup/pkg/email"
	"laundry-pickup/pkg/geocoding"
	gateway "laundry-pickup/pkg/payments"
	"laundry-pickup/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	// 1. --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	ctx := context.Background()
	loc := cfg.Location()

	// 2. --- Database Connection ---
	dbPool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to connect to database")
	}
	defer dbPool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(dbPool); err != nil {
			log.Fatal().Err(err).Msg("Database migration failed")
		}
	}

	// 3. --- External services ---
	var emailSender email.ServiceInterface = email.LogSender{}
	if cfg.SESEnabled {
		sender, err := email.NewSESV2Sender(ctx, cfg.AWSRegion, cfg.EmailFrom)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create SES sender")
		}
		emailSender = sender
	}
	templates, err := email.NewTemplateManager(cfg.EmailTemplates)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load email templates")
	}

	var paymentGateway gateway.Gateway
	if cfg.PaymentGatewayMock {
		log.Warn().Msg("Using the mock payment gateway")
		paymentGateway = gateway.NewMockGateway(cfg.PaymentReturnURL)
	} else {
		mp, err := gateway.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken, cfg.PaymentNotificationURL, cfg.PaymentReturnURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Mercado Pago gateway")
		}
		paymentGateway = mp
	}

	googleOAuthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	hub := realtime.NewHub()
	sched := scheduling.New(loc, time.Now)

	// 4. --- Dependency Injection (Wiring everything up) ---
	// --- Users Module ---
	userRepo := users.NewRepository(dbPool)
	userService := users.NewService(userRepo, emailSender, templates, cfg.JWTSecret, cfg.JWTTokenTTL,
		cfg.ClientOrigin, googleOAuthConfig, time.Now)
	userHandler := users.NewHandler(userService, cfg.IsProduction())

	// --- Catalog & Coupons ---
	catalogRepo := catalog.NewRepository(dbPool)
	couponService := coupons.NewService(coupons.NewRepository(dbPool), time.Now)

	// --- Orders Module ---
	orderRepo := orders.NewRepository(dbPool, loc)
	notifier := orders.NewEmailNotifier(emailSender, templates, userService, cfg.ClientOrigin)
	orderService := orders.NewService(orderRepo, catalogRepo, couponService, userService, sched, notifier, hub)

	// --- Logistics Module ---
	shiftService := logistics.NewShiftService(logistics.NewShiftRepository(dbPool), time.Now)
	geoClient := geocoding.NewClient(cfg.GeocodingBaseURL, cfg.GeocodingAPIKey, cfg.GeocodingRegion, cfg.GeocodingRPS)

	// --- Payments Module ---
	paymentService := payments.NewService(orderRepo, paymentGateway, hub, cfg.PaymentCurrency, time.Now)

	// --- Admin Module ---
	reportService := admin.NewReportService(admin.NewReportRepository(dbPool), loc, time.Now)

	// 5. --- Echo & Middleware ---
	e := echo.New()
	e.HideBanner = true
	e.Validator = &utils.EchoValidator{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	// 6. --- Initialize Router ---
	api.SetupRoutes(e, api.Handlers{
		Users:    userHandler,
		Orders:   orders.NewHandler(orderService, sched),
		Coupons:  coupons.NewHandler(couponService),
		Catalog:  catalog.NewHandler(catalogRepo),
		Shifts:   logistics.NewShiftHandler(shiftService),
		Geo:      logistics.NewGeoHandler(logistics.NewGeoService(geoClient)),
		Payments: payments.NewHandler(paymentService),
		Feed:     realtime.NewHandler(hub, userService, cfg.JWTSecret, cfg.ClientOrigin),
		Reports:  admin.NewHandler(reportService),
	}, userService, cfg.JWTSecret)

	// 7. --- Start Server with graceful shutdown logic ---
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Starting server")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Shutting down the server, an error occurred")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exiting")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
