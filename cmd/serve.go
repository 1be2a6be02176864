package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/resvia/resvia/api"
	"github.com/resvia/resvia/config"
	"github.com/resvia/resvia/middleware"
	"github.com/resvia/resvia/monitoring"
	"github.com/resvia/resvia/security"
	"github.com/resvia/resvia/services"
	"github.com/resvia/resvia/stores"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	db, err := stores.Open(stores.DBConfig{
		DSN:          cfg.Database.DSN(),
		ReplicaDSNs:  cfg.Database.ReplicaDSNs,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
		MaxIdleTime:  cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := stores.Migrate(db); err != nil {
		return err
	}
	log.Info().Str("host", cfg.Database.Host).Msg("database ready")

	establishmentStore := stores.CreateEstablishmentStore(db)
	bookingStore := stores.CreateBookingStore(db)
	apiKeyStore := stores.CreateAPIKeyStore(db)
	webhookStore := stores.CreateWebhookStore(db)
	deliveryLogStore := stores.CreateDeliveryLogStore(db)
	auditStore := stores.CreateAuditStore(db)

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddChannel(&monitoring.ConsoleAlertChannel{})

	var limiter security.RateLimiter
	if cfg.Redis.Enabled {
		limiter, err = security.NewRedisRateLimiter(security.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err != nil {
			return err
		}
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("rate limiting via redis")
	} else {
		limiter = security.NewFixedWindowLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	defer limiter.Close()

	authenticator := services.CreateAuthenticator(apiKeyStore, log)
	defer authenticator.Close()

	dispatcher := services.CreateDispatcher(webhookStore, deliveryLogStore, alertManager, metrics, services.DispatcherOptions{
		Workers:        cfg.Dispatch.Workers,
		QueueSize:      cfg.Dispatch.QueueSize,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
		OutboundRPS:    cfg.Dispatch.OutboundRPS,
	}, log)
	defer dispatcher.Close()

	bookingService := services.CreateBookingService(bookingStore, establishmentStore, dispatcher, log)
	auditService := services.CreateAuditService(auditStore, deliveryLogStore, log)
	keyService := services.CreateAPIKeyService(apiKeyStore, authenticator, log)
	webhookService := services.CreateWebhookService(webhookStore, log)

	bookingHandler := api.CreateBookingHandler(bookingService)
	keyHandler := api.CreateAPIKeyHandler(keyService)
	webhookHandler := api.CreateWebhookHandler(webhookService, auditService)
	auditHandler := api.CreateAuditHandler(auditService)

	am := middleware.CreateAuthMiddleware(authenticator, limiter, auditService, metrics)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.HeadersMiddleware)

	router.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(am.Audit)
	v1.Use(am.Authenticate)
	v1.Use(am.RateLimit)

	bookingsRead := am.RequirePermission("bookings", "read")
	bookingsWrite := am.RequirePermission("bookings", "write")
	v1.Handle("/establishments/{establishment}/bookings",
		bookingsRead(http.HandlerFunc(bookingHandler.HandleList))).Methods("GET")
	v1.Handle("/establishments/{establishment}/bookings/{id}",
		bookingsRead(http.HandlerFunc(bookingHandler.HandleGet))).Methods("GET")
	v1.Handle("/establishments/{establishment}/bookings/{id}/payment-succeeded",
		bookingsWrite(http.HandlerFunc(bookingHandler.HandlePaymentSucceeded))).Methods("POST")
	v1.Handle("/establishments/{establishment}/bookings/{id}/check-in",
		bookingsWrite(http.HandlerFunc(bookingHandler.HandleCheckIn))).Methods("POST")
	v1.Handle("/establishments/{establishment}/bookings/{id}/cancel",
		bookingsWrite(http.HandlerFunc(bookingHandler.HandleCancel))).Methods("POST")

	keysAdmin := am.RequirePermission("keys", "admin")
	v1.Handle("/keys", keysAdmin(http.HandlerFunc(keyHandler.HandleCreate))).Methods("POST")
	v1.Handle("/keys", keysAdmin(http.HandlerFunc(keyHandler.HandleList))).Methods("GET")
	v1.Handle("/keys/{id}", keysAdmin(http.HandlerFunc(keyHandler.HandleGet))).Methods("GET")
	v1.Handle("/keys/{id}", keysAdmin(http.HandlerFunc(keyHandler.HandleUpdate))).Methods("PUT")
	v1.Handle("/keys/{id}", keysAdmin(http.HandlerFunc(keyHandler.HandleDelete))).Methods("DELETE")

	webhooksRead := am.RequirePermission("webhooks", "read")
	webhooksWrite := am.RequirePermission("webhooks", "write")
	v1.Handle("/webhooks", webhooksWrite(http.HandlerFunc(webhookHandler.HandleCreate))).Methods("POST")
	v1.Handle("/webhooks", webhooksRead(http.HandlerFunc(webhookHandler.HandleList))).Methods("GET")
	v1.Handle("/webhooks/{id}", webhooksRead(http.HandlerFunc(webhookHandler.HandleGet))).Methods("GET")
	v1.Handle("/webhooks/{id}", webhooksWrite(http.HandlerFunc(webhookHandler.HandleUpdate))).Methods("PUT")
	v1.Handle("/webhooks/{id}/activate", webhooksWrite(http.HandlerFunc(webhookHandler.HandleActivate))).Methods("POST")
	v1.Handle("/webhooks/{id}", webhooksWrite(http.HandlerFunc(webhookHandler.HandleDelete))).Methods("DELETE")
	v1.Handle("/webhooks/{id}/deliveries", webhooksRead(http.HandlerFunc(webhookHandler.HandleDeliveries))).Methods("GET")

	auditRead := am.RequirePermission("audit", "read")
	v1.Handle("/audit/requests", auditRead(http.HandlerFunc(auditHandler.HandleListRequests))).Methods("GET")
	v1.Handle("/audit/stats", auditRead(http.HandlerFunc(auditHandler.HandleStats))).Methods("GET")

	adminRouter := mux.NewRouter()
	adminRouter.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	adminRouter.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	adminServer := &http.Server{
		Addr:    ":" + cfg.Server.AdminPort,
		Handler: adminRouter,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		log.Info().Str("port", cfg.Server.AdminPort).Msg("admin server listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("api server shutdown")
	}
	if err := adminServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown")
	}

	return nil
}
