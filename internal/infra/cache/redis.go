// Package cache provides a Redis-backed custody status cache so companion
// services can read "where is this subject" without hitting the engine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/engine"
)

const statusTTL = 30 * time.Second

// CustodyCache mirrors engine custody snapshots into Redis.
type CustodyCache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, redisURL string) (*CustodyCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &CustodyCache{client: client}, nil
}

// SetStatus writes a custody snapshot with the standard TTL.
func (c *CustodyCache) SetStatus(ctx context.Context, status engine.CustodyStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return c.client.Set(ctx, statusKey(status.SubjectID), data, statusTTL).Err()
}

// GetStatus reads a cached custody snapshot. A miss is not an error.
func (c *CustodyCache) GetStatus(ctx context.Context, id subject.ID) (engine.CustodyStatus, bool, error) {
	data, err := c.client.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.CustodyStatus{}, false, nil
	}
	if err != nil {
		return engine.CustodyStatus{}, false, err
	}
	var status engine.CustodyStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return engine.CustodyStatus{}, false, fmt.Errorf("decode status: %w", err)
	}
	return status, true, nil
}

// Invalidate drops a cached snapshot.
func (c *CustodyCache) Invalidate(ctx context.Context, id subject.ID) error {
	return c.client.Del(ctx, statusKey(id)).Err()
}

// Close releases the client.
func (c *CustodyCache) Close() error {
	return c.client.Close()
}

func statusKey(id subject.ID) string {
	return "custody:status:" + string(id)
}
