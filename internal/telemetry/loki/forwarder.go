package loki

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by Forward.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Pusher accepts one raw event document.
type Pusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

// Forward copies messages from reader to pusher until ctx is cancelled. A message is
// committed after a successful push; failed pushes are logged and left uncommitted so the
// consumer group redelivers them after a restart.
func Forward(ctx context.Context, reader MessageReader, pusher Pusher) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := pusher.PushEventJSON(ctx, msg.Value); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Int("partition", msg.Partition).Msg("worker: loki push failed")
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("worker: commit failed")
		}
	}
}
