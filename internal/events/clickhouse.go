package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/solana-task-rewards/internal/models"
	"github.com/sirupsen/logrus"
)

const createRewardEventsTable = `
	CREATE TABLE IF NOT EXISTS reward_events (
		id        String,
		timestamp DateTime64(3, 'UTC'),
		kind      LowCardinality(String),
		address   String,
		xp        Int64,
		level     Int32,
		streak    Int32,
		amount    Decimal(38, 9),
		signature String
	) ENGINE = MergeTree
	ORDER BY (address, timestamp)
`

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseSink appends reward events to the reward_events table.
type ClickHouseSink struct {
	conn driver.Conn
}

func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSink, error) {
	if cfg.Database == "" {
		cfg.Database = "rewards"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createRewardEventsTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create reward_events table: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	return &ClickHouseSink{conn: conn}, nil
}

func (c *ClickHouseSink) Publish(ctx context.Context, ev *models.RewardEvent) error {
	query := `
		INSERT INTO reward_events (
			id, timestamp, kind, address, xp, level, streak, amount, signature
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		ev.ID,
		ev.Timestamp,
		string(ev.Kind),
		ev.Address,
		ev.XP,
		int32(ev.Level),
		int32(ev.Streak),
		ev.Amount,
		ev.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reward event: %w", err)
	}
	return nil
}

func (c *ClickHouseSink) Close() error {
	return c.conn.Close()
}
