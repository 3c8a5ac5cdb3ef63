// Package bus implements the message bus client over Redis Streams: task
// publish/consume, result publish/consume, and the dead-letter stream,
// using Streams' consumer-group primitives (XADD/XREADGROUP/XACK) instead
// of simple key/value access.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// Config names the streams and consumer group this client operates
// against.
type Config struct {
	Addr              string
	TaskStreamHTTP    string
	TaskStreamBrowser string
	ResultStream      string
	DLQStream         string
	ConsumerGroup     string
	ConsumerName      string
	DLQRetention      time.Duration
}

// Client wraps a pooled go-redis client with the stream topology this
// system needs.
type Client struct {
	cfg    Config
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient connects to Redis and declares the consumer groups on every
// stream this client touches, tolerating BUSYGROUP (another worker beat us
// to it) as success.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ConsumerGroup == "" {
		return nil, errors.New("bus: consumer group must be set")
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("bus: ping failed: %w", err)
	}

	c := &Client{cfg: cfg, rdb: rdb, logger: logger}
	for _, stream := range []string{cfg.TaskStreamHTTP, cfg.TaskStreamBrowser, cfg.ResultStream, cfg.DLQStream} {
		if stream == "" {
			continue
		}
		if err := c.declareGroup(ctx, stream); err != nil {
			_ = rdb.Close()
			return nil, err
		}
	}
	logger.Info("bus client connected", zap.String("addr", cfg.Addr), zap.String("group", cfg.ConsumerGroup))
	return c, nil
}

func (c *Client) declareGroup(ctx context.Context, stream string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, c.cfg.ConsumerGroup, "$").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		if isBusyGroup(err) {
			return nil
		}
		return fmt.Errorf("bus: declare group on %s: %w", stream, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Envelope is the wire shape for every message this bus carries: task
// dispatch, result ingestion, and DLQ entries all share it, distinguished
// by which stream they're read from.
type Envelope struct {
	Priority int
	TTL      time.Duration
	Payload  json.RawMessage
}

// Delivery is one message read off a stream, carrying enough to ack it.
type Delivery struct {
	ID       string
	Envelope Envelope
}

// PublishTask appends payload to the HTTP or browser task stream
// (selected by useBrowser), tagged with priority 0-10 and a TTL used by
// consumers to drop stale messages rather than process them late.
func (c *Client) PublishTask(ctx context.Context, useBrowser bool, priority int, ttl time.Duration, payload []byte) (string, error) {
	stream := c.cfg.TaskStreamHTTP
	if useBrowser {
		stream = c.cfg.TaskStreamBrowser
	}
	return c.publish(ctx, stream, priority, ttl, payload)
}

// PublishResult appends a result envelope to the result stream.
func (c *Client) PublishResult(ctx context.Context, payload []byte) (string, error) {
	return c.publish(ctx, c.cfg.ResultStream, 0, 0, payload)
}

// PublishDLQ moves a message to the dead-letter stream after exhausting
// retries, retained for DLQRetention.
func (c *Client) PublishDLQ(ctx context.Context, payload []byte) (string, error) {
	return c.publish(ctx, c.cfg.DLQStream, 0, c.cfg.DLQRetention, payload)
}

func (c *Client) publish(ctx context.Context, stream string, priority int, ttl time.Duration, payload []byte) (string, error) {
	values := map[string]interface{}{
		"priority": strconv.Itoa(priority),
		"ttl_ms":   strconv.FormatInt(ttl.Milliseconds(), 10),
		"payload":  payload,
	}
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("bus: publish to %s: %w", stream, err)
	}
	return id, nil
}

// ConsumeTasks blocks (respecting ctx) for up to block waiting for new
// task messages on stream, claiming up to count of them for this
// consumer. An empty slice with a nil error means the block window
// elapsed with nothing new.
func (c *Client) ConsumeTasks(ctx context.Context, useBrowser bool, count int64, block time.Duration) ([]Delivery, error) {
	stream := c.cfg.TaskStreamHTTP
	if useBrowser {
		stream = c.cfg.TaskStreamBrowser
	}
	return c.consume(ctx, stream, count, block)
}

// ConsumeResults reads new result messages for this consumer group.
func (c *Client) ConsumeResults(ctx context.Context, count int64, block time.Duration) ([]Delivery, error) {
	return c.consume(ctx, c.cfg.ResultStream, count, block)
}

func (c *Client) consume(ctx context.Context, stream string, count int64, block time.Duration) ([]Delivery, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.ConsumerGroup,
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: consume %s: %w", stream, err)
	}

	var deliveries []Delivery
	for _, streamResult := range res {
		for _, msg := range streamResult.Messages {
			env, perr := parseEnvelope(msg.Values)
			if perr != nil {
				c.logger.Warn("bus: dropping malformed message", zap.String("id", msg.ID), zap.Error(perr))
				_ = c.Ack(ctx, stream, msg.ID)
				continue
			}
			deliveries = append(deliveries, Delivery{ID: msg.ID, Envelope: env})
		}
	}
	return deliveries, nil
}

func parseEnvelope(values map[string]interface{}) (Envelope, error) {
	priorityStr, _ := values["priority"].(string)
	priority, _ := strconv.Atoi(priorityStr)

	ttlStr, _ := values["ttl_ms"].(string)
	ttlMS, _ := strconv.ParseInt(ttlStr, 10, 64)

	payloadStr, ok := values["payload"].(string)
	if !ok {
		return Envelope{}, errors.New("missing payload field")
	}
	return Envelope{Priority: priority, TTL: time.Duration(ttlMS) * time.Millisecond, Payload: json.RawMessage(payloadStr)}, nil
}

// TaskStreamName reports which stream a worker configured for useBrowser
// consumes from, so it can Ack against the same stream it read from.
func (c *Client) TaskStreamName(useBrowser bool) string {
	if useBrowser {
		return c.cfg.TaskStreamBrowser
	}
	return c.cfg.TaskStreamHTTP
}

// ResultStreamName reports the result stream name, for result-consumer Ack.
func (c *Client) ResultStreamName() string { return c.cfg.ResultStream }

// Ack acknowledges delivery of id on stream, removing it from the
// consumer group's pending entries list.
func (c *Client) Ack(ctx context.Context, stream, id string) error {
	if err := c.rdb.XAck(ctx, stream, c.cfg.ConsumerGroup, id).Err(); err != nil {
		return fmt.Errorf("bus: ack %s/%s: %w", stream, id, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }
