// cmd/subscriber prints live reward events published by the API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/events"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	addr := flag.String("redis", envOr("REDIS_ADDR", "localhost:6379"), "redis address")
	kind := flag.String("kind", "", "only print events of this kind (e.g. airdrop)")
	backlog := flag.Int("recent", 0, "print this many recent events before subscribing")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	client := redis.NewClient(&redis.Options{Addr: *addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pub, err := events.NewPublisher(client, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create subscriber")
	}

	if *backlog > 0 {
		recent, err := pub.Recent(ctx, *backlog)
		if err != nil {
			logger.WithError(err).Warn("failed to read recent events")
		}
		// oldest first so the output reads chronologically
		for i := len(recent) - 1; i >= 0; i-- {
			printEvent(logger, "recent", recent[i])
		}
	}

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				logger.WithError(err).WithField("channel", name).Error("subscription ended")
			}
		}()
	}

	if *kind != "" {
		ch := events.KindChannel(models.RewardKind(*kind))
		run(ch, func() error {
			return pub.Subscribe(ctx, ch, func(ev *models.RewardEvent) { printEvent(logger, "live", ev) })
		})
	} else {
		run(constants.PubSubChannelRewards, func() error {
			return pub.Subscribe(ctx, constants.PubSubChannelRewards, func(ev *models.RewardEvent) { printEvent(logger, "live", ev) })
		})
		// Level-ups are rare enough to deserve their own line.
		pattern := constants.PubSubChannelKindPrefix + "*"
		run(pattern, func() error {
			return pub.PSubscribe(ctx, pattern, func(ev *models.RewardEvent) {
				if ev.Kind == models.RewardLevelUp {
					logger.WithFields(logrus.Fields{"address": ev.Address, "level": ev.Level}).Info("level up")
				}
			})
		})
	}

	logger.Info("subscriber running, press Ctrl+C to stop")

	<-sigChan
	logger.Info("shutting down subscriber")
	cancel()
	wg.Wait()
}

func printEvent(logger *logrus.Logger, source string, ev *models.RewardEvent) {
	fields := logrus.Fields{
		"source":  source,
		"kind":    ev.Kind,
		"address": ev.Address,
	}
	if ev.XP != 0 {
		fields["xp"] = ev.XP
	}
	if !ev.Amount.IsZero() {
		fields["amount"] = ev.Amount.String()
	}
	if ev.Signature != "" {
		fields["signature"] = ev.Signature
	}
	logger.WithFields(fields).Info("reward event")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
