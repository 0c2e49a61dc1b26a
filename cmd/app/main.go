package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/bolidosrifas/raffle/api"
	"github.com/bolidosrifas/raffle/config"
	"github.com/bolidosrifas/raffle/internal/bootstrap"
	"github.com/bolidosrifas/raffle/internal/cache"
	"github.com/bolidosrifas/raffle/internal/kafka"
	"github.com/bolidosrifas/raffle/internal/repository"
	"github.com/bolidosrifas/raffle/internal/service/purchases"
	"github.com/bolidosrifas/raffle/internal/service/tickets"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logrus.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Raffle.AvailabilityCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	ticketRepo := repository.NewTicketRepository(pool)
	purchaseRepo := repository.NewPurchaseRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	ticketService := tickets.NewTicketService(
		ticketRepo,
		redisCache,
		tickets.WithDefaultHold(time.Duration(cfg.Raffle.HoldMinutes)*time.Minute),
	)
	purchaseService := purchases.NewPurchaseService(
		purchaseRepo,
		ticketService,
		producer,
		purchases.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		purchases.WithDefaultEventID(cfg.Raffle.DefaultEventID),
	)

	ticketHandler := api.NewTicketHandler(ticketService, cfg.Raffle.DefaultEventID)
	purchaseHandler := api.NewPurchaseHandler(purchaseService, cfg.Raffle.DefaultEventID)
	adminHandler := api.NewAdminHandler(userRepo, purchaseService, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	if err := bootstrap.Run(ctx, cfg, ticketHandler, purchaseHandler, adminHandler); err != nil {
		logrus.Fatalf("server error: %v", err)
	}
}
