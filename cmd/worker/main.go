// Worker consumes security events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, SECURITY_EVENTS_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/config"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/logging"
	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/telemetry/loki"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.Env)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokersList(),
		Topic:          cfg.SecurityEventsTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("topic", cfg.SecurityEventsTopic).
		Str("group", cfg.KafkaGroupID).
		Str("loki", cfg.LokiURL).
		Msg("worker: consuming")

	if err := loki.Forward(ctx, reader, loki.NewClient(cfg.LokiURL)); err != nil {
		log.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	log.Info().Msg("worker: stopped")
}
