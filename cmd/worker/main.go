package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/bolidosrifas/raffle/config"
	"github.com/bolidosrifas/raffle/internal/email"
	"github.com/bolidosrifas/raffle/internal/kafka"
	"github.com/bolidosrifas/raffle/internal/repository"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logrus.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	ticketService := tickets.NewTicketService(repository.NewTicketRepository(pool), nil)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(cfg.SMTP)

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.PurchaseEvent) error {
			// The allocation is already committed by the time the event
			// arrives, so a delivery failure is only logged.
			if err := sender.Send(ctx, event); err != nil {
				logrus.WithError(err).WithField("purchase_id", event.PurchaseID).Error("send notification")
			}
			return nil
		}); err != nil {
			logrus.WithError(err).Info("consumer stopped")
		}
	}()

	sweep := time.Duration(cfg.Worker.ReclaimSweepMinutes) * time.Minute
	if sweep <= 0 {
		sweep = time.Minute
	}
	reclaimTicker := time.NewTicker(sweep)
	defer reclaimTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reclaimTicker.C:
			reclaimed, err := ticketService.ReclaimLapsed(ctx)
			if err != nil {
				logrus.WithError(err).Error("reclaim lapsed reservations")
				continue
			}
			if reclaimed > 0 {
				logrus.WithField("count", reclaimed).Info("reclaimed lapsed reservations")
			}
		case s := <-sig:
			logrus.Infof("received signal %v, shutting down", s)
			return
		}
	}
}
