package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/cosign/adapters/events"
	"github.com/layer-3/cosign/adapters/store"
	"github.com/layer-3/cosign/adapters/tokenizer"
	"github.com/layer-3/cosign/internal/config"
	"github.com/layer-3/cosign/internal/logger"
	"github.com/layer-3/cosign/internal/retry"
	"github.com/layer-3/cosign/ports"
	"github.com/layer-3/cosign/service"
	transport "github.com/layer-3/cosign/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type backend interface {
	ports.ChallengeStore
	ports.ProposalStore
	ports.RevocationStore
	ports.UserStore
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New("cosign", cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	privateKey, ephemeral, err := cfg.SigningKey()
	if err != nil {
		log.Fatalf("Failed to load signing key: %v", err)
	}
	if ephemeral {
		log.Warn("SIGNING_KEY not set, using an ephemeral key; sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st        backend
		publisher message.Publisher
		health    transport.HealthCheck
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}

		redisStore := store.NewRedisStore(redisClient)
		st, health = redisStore, redisStore.Ping
		log.WithField("redis", opts.Addr).Info("using redis store")
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

		memoryStore := store.NewMemoryStore()
		st = memoryStore
		go sweep(ctx, memoryStore, cfg.SweepInterval, log)
		log.Warn("REDIS_URL not set, using in-memory store")
	}
	defer publisher.Close()

	opts := service.Options{
		Log: log,
		Policy: retry.Policy{
			Timeout:     cfg.StoreTimeout,
			MaxRetries:  cfg.StoreRetries,
			InitialWait: retry.DefaultPolicy().InitialWait,
			MaxWait:     retry.DefaultPolicy().MaxWait,
		},
	}

	eventPub := events.NewWatermillPublisher(publisher)
	challenges := service.NewChallengeManager(st, cfg.ChallengeTTL, opts)
	sessions := service.NewSessionIssuer(tokenizer.NewJWTTokenizer(privateKey), st, cfg.SessionTTL, opts)
	authService := service.NewAuthService(challenges, sessions, st, eventPub, opts)
	registry := service.NewRegistry(st, eventPub, opts)
	coordinator := service.NewCoordinator(registry, eventPub, opts)

	router := transport.SetupRouter(authService, registry, coordinator, health, log)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// sweep reclaims expired challenges and revocations from the memory store.
func sweep(ctx context.Context, s *store.MemoryStore, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.WithField("removed", n).Debug("swept expired entries")
			}
		}
	}
}
