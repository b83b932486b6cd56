package store

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// DefaultFeedChannel is the Redis channel ledger changes are published on.
const DefaultFeedChannel = "halaqa:ledger:changes"

// FeedClient is the part of the Redis client the bridge uses.
// *redis.Client implements it.
type FeedClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisFeed bridges a local Feed across API instances with Redis pub/sub.
// Messages are "<instance>|<key>"; an instance ignores its own messages
// because it already notified its local feed when committing.
type RedisFeed struct {
	client   FeedClient
	feed     *Feed
	channel  string
	instance string

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRedisFeed creates a bridge for feed over client.
func NewRedisFeed(client FeedClient, feed *Feed, channel string) *RedisFeed {
	if channel == "" {
		channel = DefaultFeedChannel
	}
	return &RedisFeed{
		client:   client,
		feed:     feed,
		channel:  channel,
		instance: uid.New(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Publish announces a change of key to the other instances.
func (f *RedisFeed) Publish(ctx context.Context, key string) error {
	return f.client.Publish(ctx, f.channel, f.instance+"|"+key).Err()
}

// Start subscribes to the channel and forwards remote changes to the local feed.
func (f *RedisFeed) Start(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	f.started.Store(true)
	logger.Info("[RedisFeed] Listening on %s as %s", f.channel, f.instance)
	go f.run(pubsub)
	return nil
}

func (f *RedisFeed) run(pubsub *redis.PubSub) {
	defer close(f.done)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				logger.Warn("[RedisFeed] Subscription channel closed")
				return
			}
			f.handle(msg.Payload)
		case <-f.stop:
			return
		}
	}
}

// handle forwards a remote change to the local feed. Own and malformed
// messages are dropped.
func (f *RedisFeed) handle(payload string) {
	instance, key, found := strings.Cut(payload, "|")
	if !found || instance == "" || key == "" {
		logger.Warn("[RedisFeed] Ignoring malformed message %q", payload)
		return
	}
	if instance == f.instance {
		return
	}
	f.feed.Notify(key)
}

// Close stops forwarding remote changes.
func (f *RedisFeed) Close() error {
	f.stopOnce.Do(func() { close(f.stop) })
	if !f.started.Load() {
		return nil
	}
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
	}
	return nil
}

var (
	_ Publisher  = (*RedisFeed)(nil)
	_ FeedClient = (*redis.Client)(nil)
)
