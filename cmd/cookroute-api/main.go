// README: Entry point; loads config, wires module services, starts the HTTP
// server with the live websocket hub.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cookroute/internal/config"
	httptransport "cookroute/internal/http"
	"cookroute/internal/infra"
	"cookroute/internal/modules/catalog"
	"cookroute/internal/modules/driver"
	"cookroute/internal/modules/order"
	"cookroute/internal/modules/payment"
	"cookroute/internal/notify"
	"cookroute/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	messagingClient, err := infra.NewMessaging(ctx, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	codec := infra.NewTokenCodec(cfg.Auth.JWTSecret)

	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(
		registry,
		notify.NewFCMPusher(messagingClient),
		notify.NewPGTokenSource(dbPool),
		logger,
	)

	catalogStore := catalog.NewStore(dbPool)

	driverStore := driver.NewStore(dbPool)
	geoStore := driver.NewGeoStore(redisClient)
	matcher := driver.NewMatcher(driverStore, cfg.Matching, logger)
	driverSvc := driver.NewService(driverStore, geoStore, cfg.Location.MinUpdateInterval, logger)

	gateway := payment.NewStripeGateway(cfg.Payment.Secret, cfg.Payment.EndpointSecret)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(
		orderStore,
		catalogStore,
		matcher,
		geoStore,
		driverSvc,
		gateway,
		dispatcher,
		order.Config{
			DeliveryFee:     cfg.Order.DeliveryFee,
			Currency:        cfg.Payment.Currency,
			CancelGrace:     cfg.Order.CancelGrace,
			ServiceRadiusKm: cfg.Matching.ServiceRadiusKm,
		},
		logger,
	)

	paymentSvc := payment.NewService(gateway, orderSvc, logger)

	hub := ws.NewHub(registry, orderSvc, driverSvc, codec, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:   orderSvc,
		Drivers:  driverSvc,
		Payments: paymentSvc,
		Hub:      hub,
		Codec:    codec,
		Log:      logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
