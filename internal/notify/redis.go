package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/switchyard/internal/apperr"
)

// RedisRelay publishes signals on a Redis channel per board so every server
// instance can deliver them to its own hub. It implements Publisher.
type RedisRelay struct {
	rdb    *redis.Client
	prefix string
	hub    *Hub
	logger *log.Logger
}

// NewRedisRelay returns a relay that publishes to prefix+boardID and delivers
// received signals to hub.
func NewRedisRelay(rdb *redis.Client, prefix string, hub *Hub, logger *log.Logger) *RedisRelay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisRelay{rdb: rdb, prefix: prefix, hub: hub, logger: logger}
}

// Channel returns the Redis channel for boardID.
func (r *RedisRelay) Channel(boardID string) string {
	return r.prefix + boardID
}

// Publish sends the signal through Redis. If Redis is unreachable the signal
// is delivered to the local hub only, so this instance's observers still
// converge.
func (r *RedisRelay) Publish(ctx context.Context, boardID, message string) {
	sig := NewSignal(boardID, message)
	payload, err := json.Marshal(sig)
	if err == nil {
		err = r.rdb.Publish(ctx, r.Channel(boardID), payload).Err()
	}
	if err != nil {
		r.logger.WithFields(log.Fields{
			"board_id": boardID,
			"kind":     apperr.KindDelivery,
		}).Warn(fmt.Errorf("%w: redis publish: %w", apperr.ErrDelivery, err))
		r.hub.Broadcast(sig)
	}
}

// Run relays signals from Redis into the hub until ctx is cancelled,
// resubscribing if the subscription drops. ready, if non-nil, is closed once
// the first subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	for {
		sub := r.rdb.PSubscribe(ctx, r.prefix+"*")
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			if ctx.Err() != nil {
				return nil
			}
			r.logger.WithError(err).Error("redis relay: subscribe failed, retrying")
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}
		if ready != nil {
			close(ready)
			ready = nil
		}

		r.consume(ctx, sub.Channel())
		sub.Close()
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("redis relay: channel closed, reconnecting")
		if !sleep(ctx, time.Second) {
			return nil
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				r.logger.WithError(err).WithField("channel", msg.Channel).Warn("redis relay: bad payload")
				continue
			}
			if sig.BoardID == "" {
				sig.BoardID = strings.TrimPrefix(msg.Channel, r.prefix)
			}
			r.hub.Broadcast(sig)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
