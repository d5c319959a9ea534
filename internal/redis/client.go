package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/supportdesk/support-server-go/internal/config"
)

// Client is the shared connection for dashboard fan-out and the Redis rate
// limiter. The embedded client stays reachable for raw commands.
type Client struct {
	*redis.Client
}

// NewClient parses a redis:// or rediss:// URL and fails unless the server
// answers a ping.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := &Client{redis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return c, nil
}

const eventsChannelPrefix = "events:"

// EventsChannel is the pub/sub channel for one organization's dashboard events.
func EventsChannel(organizationID string) string {
	return eventsChannelPrefix + organizationID
}

// PublishEvent sends payload to every instance subscribed to the
// organization. It returns how many subscribers received it.
func (c *Client) PublishEvent(ctx context.Context, organizationID string, payload []byte) (int64, error) {
	return c.Publish(ctx, EventsChannel(organizationID), payload).Result()
}

// SubscribeEvents opens a subscription to the organization's channel. The
// caller owns the returned PubSub and must close it.
func (c *Client) SubscribeEvents(ctx context.Context, organizationID string) *redis.PubSub {
	return c.Subscribe(ctx, EventsChannel(organizationID))
}
