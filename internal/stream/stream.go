// Package stream wraps the Redis Stream holding a chat's append-only log.
//
// Each chat is one stream keyed by its chat_id. An entry maps participant
// labels to message texts and is immutable once appended. Entry ids are
// server-assigned "millis-seq" strings and are totally ordered within a
// stream.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StartNew is the cursor value meaning "deliver only entries appended after
// the read begins".
const StartNew = "$"

// Entry is one append-only log record: participant label -> message text.
type Entry struct {
	ID     string
	Values map[string]string
}

// Reader reads chat log entries in id order.
type Reader interface {
	// RangeAll returns every entry of the chat from the beginning up to now.
	RangeAll(ctx context.Context, chatID string) ([]Entry, error)

	// ReadAfter blocks up to maxWait for entries appended after lastID and
	// returns them in id order. lastID may be StartNew. An empty slice and
	// nil error means the wait timed out with nothing new.
	ReadAfter(ctx context.Context, chatID, lastID string, count int64, maxWait time.Duration) ([]Entry, error)
}

// Writer appends chat log entries.
type Writer interface {
	// Append adds one entry attributed per the values map and returns the
	// server-assigned entry id.
	Append(ctx context.Context, chatID string, values map[string]string) (string, error)
}

// Config holds Redis connection settings.
type Config struct {
	URL      string // redis://host:port
	Password string
	DB       int
}

// Client talks to the Redis server backing chat streams and session
// documents. It implements Reader and Writer.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Client, error) {
	url := cfg.URL
	if url == "" {
		url = "redis://127.0.0.1:6379"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Redis exposes the underlying connection for the session document store.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Append implements Writer via XADD with a server-assigned id.
func (c *Client) Append(ctx context.Context, chatID string, values map[string]string) (string, error) {
	args := make(map[string]interface{}, len(values))
	for k, v := range values {
		args[k] = v
	}
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: chatID,
		ID:     "*",
		Values: args,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", chatID, err)
	}
	return id, nil
}

// RangeAll implements Reader via XRANGE over the full stream.
func (c *Client) RangeAll(ctx context.Context, chatID string) ([]Entry, error) {
	msgs, err := c.rdb.XRange(ctx, chatID, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", chatID, err)
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, fromXMessage(m))
	}
	return entries, nil
}

// ReadAfter implements Reader via a blocking XREAD.
func (c *Client) ReadAfter(ctx context.Context, chatID, lastID string, count int64, maxWait time.Duration) ([]Entry, error) {
	res, err := c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{chatID, lastID},
		Count:   count,
		Block:   maxWait,
	}).Result()
	if err != nil {
		// Block timeout with nothing new comes back as redis.Nil.
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xread %s after %s: %w", chatID, lastID, err)
	}

	var entries []Entry
	for _, xs := range res {
		for _, m := range xs.Messages {
			entries = append(entries, fromXMessage(m))
		}
	}
	return entries, nil
}

func fromXMessage(m redis.XMessage) Entry {
	values := make(map[string]string, len(m.Values))
	for k, v := range m.Values {
		if s, ok := v.(string); ok {
			values[k] = s
		} else {
			values[k] = fmt.Sprintf("%v", v)
		}
	}
	return Entry{ID: m.ID, Values: values}
}
