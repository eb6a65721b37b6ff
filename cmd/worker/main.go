// Worker consumes workspace lifecycle events and resolves the state they
// imply: activation after provisioning, deletion of orphaned workspaces,
// and ownership succession after a member leaves.
// Set DATABASE_URL, KAFKA_BROKERS, KAFKA_GROUP_ID; REDIS_ADDR enables
// consumer-side dedup.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"identity-service/internal/config"
	"identity-service/internal/db"
	"identity-service/internal/events"
	"identity-service/internal/logger"
	membershiprepo "identity-service/internal/membership/repository"
	membershipservice "identity-service/internal/membership/service"
	"identity-service/internal/redis"
	userdomain "identity-service/internal/user/domain"
	userrepo "identity-service/internal/user/repository"
	"identity-service/internal/workspace/consumer"
	workspacerepo "identity-service/internal/workspace/repository"
	workspaceservice "identity-service/internal/workspace/service"
)

// noSync satisfies the workspace service's sync dependency. The worker
// never switches a user's current workspace, so no sync is ever issued.
type noSync struct{}

func (noSync) SyncAttributes(context.Context, string, *userdomain.User) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.Get()
		l.Fatal().Err(err).Msg("config load failed")
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	producer := events.NewKafkaProducer(brokers)
	defer producer.Close()

	users := userrepo.NewPostgresRepository(database)
	workspaces := workspacerepo.NewPostgresRepository(database)
	memberships := membershiprepo.NewPostgresRepository(database)

	membershipSvc := membershipservice.NewMembershipService(memberships, workspaces, users, producer, log)
	workspaceSvc := workspaceservice.NewWorkspaceService(workspaces, membershipSvc, users, noSync{}, producer, log)
	resolver := consumer.NewWorkspaceEventConsumer(workspaceSvc, membershipSvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dedup events.Deduper
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer client.Close()
		dedup = redis.NewDedupChecker(client)
	}

	consumers := []*events.Consumer{
		events.NewConsumer(brokers, cfg.KafkaGroupID, events.TopicWorkspaceCreated, resolver.HandleWorkspaceCreated, dedup, log),
		events.NewConsumer(brokers, cfg.KafkaGroupID, events.TopicMembershipDeleted, resolver.HandleMembershipDeleted, dedup, log),
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		cancel()
	}()

	log.Info().
		Strs("brokers", brokers).
		Str("group_id", cfg.KafkaGroupID).
		Bool("dedup", dedup != nil).
		Msg("worker started")

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *events.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Error().Err(err).Msg("consumer stopped with error")
				cancel()
			}
		}(c)
	}
	wg.Wait()
	log.Info().Msg("worker stopped")
}
