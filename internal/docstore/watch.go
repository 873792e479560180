// internal/docstore/watch.go
package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"rpas-compliance/internal/common/logger"
	"rpas-compliance/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "docstore:"

// channelFor maps a collection path to its pub/sub channel. Subcollection
// paths share the parent collection's channel so one subscription covers all
// children, e.g. sfocApplications/app-1/documents publishes on
// docstore:sfocApplications.
func channelFor(collection string) string {
	root := collection
	if i := strings.Index(collection, "/"); i >= 0 {
		root = collection[:i]
	}
	return channelPrefix + root
}

// RedisBus fans document change events out over Redis pub/sub. It implements
// both Publisher and Watcher.
type RedisBus struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisBus(client *redis.Client, log logger.Logger) *RedisBus {
	return &RedisBus{client: client, logger: log}
}

func (b *RedisBus) Publish(ctx context.Context, event ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelFor(event.Collection), payload).Err()
}

// Watch subscribes to change events for one collection, filtered to orgID.
// Events arriving for other organizations or other collections sharing the
// channel are dropped. The cancel func must be called on teardown; the event
// channel is closed afterwards.
func (b *RedisBus) Watch(ctx context.Context, collection, orgID string) (<-chan ChangeEvent, func(), error) {
	sub := b.client.Subscribe(ctx, channelFor(collection))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	events := make(chan ChangeEvent, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			sub.Close()
			metrics.WatchSubscriptions.WithLabelValues(channelFor(collection)).Dec()
		})
	}
	metrics.WatchSubscriptions.WithLabelValues(channelFor(collection)).Inc()

	go func() {
		defer close(events)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.WithError(err).Warn("dropping malformed change event", map[string]interface{}{
						"channel": msg.Channel,
					})
					continue
				}
				if event.OrgID != orgID || event.Collection != collection {
					continue
				}
				select {
				case events <- event:
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return events, cancel, nil
}

var (
	_ Publisher = (*RedisBus)(nil)
	_ Watcher   = (*RedisBus)(nil)
)
