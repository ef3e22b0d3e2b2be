package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/solana-task-rewards/internal/constants"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Publisher fans reward events out over Redis pub/sub and keeps a capped
// recent list.
type Publisher struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewPublisher(client redis.UniversalClient, logger *logrus.Logger) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Publisher{client: client, logger: logger}, nil
}

// KindChannel is the channel carrying only events of kind.
func KindChannel(kind models.RewardKind) string {
	return constants.PubSubChannelKindPrefix + string(kind)
}

// Publish reward event to multiple channels
func (p *Publisher) Publish(ctx context.Context, ev *models.RewardEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, constants.PubSubChannelRewards, data)
	pipe.Publish(ctx, KindChannel(ev.Kind), data)
	pipe.LPush(ctx, constants.RedisKeyRecentRewards, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentRewards, 0, constants.MaxRecentRewards-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *Publisher) Recent(ctx context.Context, limit int) ([]*models.RewardEvent, error) {
	if limit <= 0 || limit > constants.MaxRecentRewards {
		limit = constants.MaxRecentRewards
	}
	vals, err := p.client.LRange(ctx, constants.RedisKeyRecentRewards, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}

	out := make([]*models.RewardEvent, 0, len(vals))
	for _, v := range vals {
		var ev models.RewardEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		out = append(out, &ev)
	}
	return out, nil
}

// Subscribe delivers events from channel to handler until ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, channel string, handler func(*models.RewardEvent)) error {
	return p.consume(ctx, p.client.Subscribe(ctx, channel), channel, handler)
}

// PSubscribe is Subscribe for a channel pattern (e.g. "rewards:kind:*").
func (p *Publisher) PSubscribe(ctx context.Context, pattern string, handler func(*models.RewardEvent)) error {
	return p.consume(ctx, p.client.PSubscribe(ctx, pattern), pattern, handler)
}

func (p *Publisher) consume(ctx context.Context, sub *redis.PubSub, name string, handler func(*models.RewardEvent)) error {
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	p.logger.WithField("channel", name).Info("subscribed to reward events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.RewardEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).Warn("error unmarshaling reward event")
				continue
			}
			handler(&ev)
		}
	}
}
