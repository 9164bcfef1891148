package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/config"
	"github.com/itstheanurag/judgexec/internal/records"
)

const DefaultChannel = "judgexec:runs"

// Publisher fans run records out over a Redis pub/sub channel, feeding the
// live websocket stream.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *zerolog.Logger
}

var _ records.Sink = (*Publisher)(nil)

func NewPublisher(conf config.RedisConfig, log *zerolog.Logger) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := conf.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	log.Info().Str("channel", channel).Msg("redis connection established")

	return &Publisher{client: rdb, channel: channel, log: log}, nil
}

func (p *Publisher) Name() string {
	return "redis"
}

func (p *Publisher) Save(ctx context.Context, rec *records.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe streams published records until ctx is done. A non-empty
// requestID keeps only that request's record.
func (p *Publisher) Subscribe(ctx context.Context, requestID string) (<-chan *records.Record, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	out := make(chan *records.Record)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				rec, err := decode(msg.Payload)
				if err != nil {
					p.log.Warn().Err(err).Msg("dropping malformed run record")
					continue
				}
				if requestID != "" && rec.ID != requestID {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func decode(payload string) (*records.Record, error) {
	var rec records.Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("run record without id")
	}
	return &rec, nil
}
