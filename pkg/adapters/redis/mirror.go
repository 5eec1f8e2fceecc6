package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/roster/internal/logging"
	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Source yields the sessions to publish.
type Source interface {
	Infos(keep registry.Predicate) []domain.Info
}

// ReplicaSession is a session as seen through the mirror.
type ReplicaSession struct {
	Replica string `json:"replica"`
	domain.Info
}

// Mirror publishes a Source to Redis.
type Mirror struct {
	client  *backend.Client
	source  Source
	prefix  string
	ttl     time.Duration
	replica string
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Mirror)

// WithTTL sets how long a replica stays visible without a Sync.
func WithTTL(ttl time.Duration) Option {
	return func(m *Mirror) {
		m.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(m *Mirror) {
		m.prefix = prefix
	}
}

// WithReplicaID overrides the generated replica id.
func WithReplicaID(id string) Option {
	return func(m *Mirror) {
		m.replica = id
	}
}

// WithLogger configures a logger for background sync failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

// New creates a Mirror with its own client.
func New(address, password string, db int, source Source, opts ...Option) *Mirror {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, source, opts...)
}

// NewFromClient creates a Mirror from an existing client. source may be nil
// when the Mirror is only used to List.
func NewFromClient(client *backend.Client, source Source, opts ...Option) *Mirror {
	m := &Mirror{
		client:  client,
		source:  source,
		prefix:  "roster:",
		ttl:     30 * time.Second,
		replica: uuid.NewString(),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Replica returns the id this process publishes under.
func (m *Mirror) Replica() string {
	return m.replica
}

func (m *Mirror) key(replica string) string {
	return m.prefix + "replica:" + replica
}

func (m *Mirror) indexKey() string {
	return m.prefix + "replicas"
}

// Sync replaces this replica's hash with the current sessions and refreshes its expiry.
func (m *Mirror) Sync(ctx context.Context) error {
	infos := m.source.Infos(nil)
	fields := make(map[string]interface{}, len(infos))
	for _, info := range infos {
		data, err := json.Marshal(info)
		if err != nil {
			return fmt.Errorf("failed to marshal session %d: %w", info.ID, err)
		}
		fields[strconv.FormatUint(info.ID, 10)] = data
	}

	key := m.key(m.replica)
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, m.ttl)
	}
	pipe.ZAdd(ctx, m.indexKey(), backend.Z{
		Score:  float64(m.now().Add(m.ttl).Unix()),
		Member: m.replica,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync to redis: %w", err)
	}
	return nil
}

// Run syncs immediately and then once per interval until ctx is done.
// Failed syncs are logged and retried on the next tick.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.Sync(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("Mirror sync failed", "replica", m.replica, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// List returns the sessions of every live replica, ordered by replica then session id.
func (m *Mirror) List(ctx context.Context) ([]ReplicaSession, error) {
	// Lazy Cleanup: drop replicas whose expiry has passed
	now := float64(m.now().Unix())
	err := m.client.ZRemRangeByScore(ctx, m.indexKey(), "-inf", fmt.Sprintf("(%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired replicas: %w", err)
	}

	replicas, err := m.client.ZRange(ctx, m.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list replicas: %w", err)
	}
	sort.Strings(replicas)

	var out []ReplicaSession
	for _, replica := range replicas {
		fields, err := m.client.HGetAll(ctx, m.key(replica)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read replica %s: %w", replica, err)
		}
		batch := make([]ReplicaSession, 0, len(fields))
		for _, raw := range fields {
			var info domain.Info
			if err := json.Unmarshal([]byte(raw), &info); err != nil {
				return nil, fmt.Errorf("failed to unmarshal session of replica %s: %w", replica, err)
			}
			batch = append(batch, ReplicaSession{Replica: replica, Info: info})
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
		out = append(out, batch...)
	}
	return out, nil
}

// Remove withdraws this replica from Redis.
func (m *Mirror) Remove(ctx context.Context) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.key(m.replica))
	pipe.ZRem(ctx, m.indexKey(), m.replica)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove replica: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (m *Mirror) Close() error {
	return m.client.Close()
}
