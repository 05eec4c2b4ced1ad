package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"cryptoalert/internal/alert"
	"cryptoalert/internal/config"
)

const (
	defaultPrefix   = "cryptoalert:price:"
	defaultChannel  = "cryptoalert.triggers"
	defaultPriceTTL = 10 * time.Minute
)

// RedisMirror copies fetched prices into Redis and publishes trigger events
// so other processes can read them without calling the price provider.
type RedisMirror struct {
	client  redis.UniversalClient
	prefix  string
	channel string
	ttl     time.Duration
}

type PriceEntry struct {
	Key          string           `json:"key"`
	Value        decimal.Decimal  `json:"value"`
	PctChange24h *decimal.Decimal `json:"pct_change_24h,omitempty"`
	ObservedAt   time.Time        `json:"observed_at"`
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisMirror(client redis.UniversalClient, cfg config.RedisConfig) *RedisMirror {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = defaultChannel
	}
	ttl := cfg.PriceTTL
	if ttl <= 0 {
		ttl = defaultPriceTTL
	}
	return &RedisMirror{client: client, prefix: prefix, channel: channel, ttl: ttl}
}

func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *RedisMirror) PublishPrices(ctx context.Context, samples map[string]alert.Sample, at time.Time) error {
	if m == nil || len(samples) == 0 {
		return nil
	}
	pipe := m.client.Pipeline()
	for key, s := range samples {
		b, err := json.Marshal(PriceEntry{Key: key, Value: s.Value, PctChange24h: s.PctChange24h, ObservedAt: at})
		if err != nil {
			return err
		}
		pipe.Set(ctx, m.prefix+key, b, m.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) PublishTrigger(ctx context.Context, event alert.Event) error {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, m.channel, b).Err()
}

// Price reads a mirrored price. ok is false when the key is absent or expired.
func (m *RedisMirror) Price(ctx context.Context, key string) (PriceEntry, bool, error) {
	var out PriceEntry
	val, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if err == redis.Nil {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal(val, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
