package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	StreamName  = "batislens:changes"
	GroupPrefix = "batislens"

	blockMillis = 5000
	minBackoff  = 100 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// Publisher appends change batches to the Valkey stream, so that every
// process sharing the workspace invalidates the same way.
type Publisher struct {
	client valkey.Client
	stream string
}

// NewPublisher writes to stream, or StreamName when empty.
func NewPublisher(client valkey.Client, stream string) *Publisher {
	if stream == "" {
		stream = StreamName
	}
	return &Publisher{client: client, stream: stream}
}

// Publish returns the stream entry id.
func (p *Publisher) Publish(ctx context.Context, b Batch) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(p.stream).Id("*").
		FieldValue().FieldValue("data", string(data)).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Consumer reads change batches from the Valkey stream and hands them to a
// Handler one at a time. Each consumer owns its group, so every process sees
// every batch.
type Consumer struct {
	client     valkey.Client
	stream     string
	group      string
	consumerID string
	logger     *slog.Logger
}

// NewConsumer reads stream (StreamName when empty) in the group
// "<groupPrefix>:<consumerID>". groupPrefix defaults to GroupPrefix.
func NewConsumer(client valkey.Client, stream, groupPrefix, consumerID string, logger *slog.Logger) *Consumer {
	if stream == "" {
		stream = StreamName
	}
	if groupPrefix == "" {
		groupPrefix = GroupPrefix
	}
	return &Consumer{
		client:     client,
		stream:     stream,
		group:      groupPrefix + ":" + consumerID,
		consumerID: consumerID,
		logger:     logger,
	}
}

// Group returns the consumer group name.
func (c *Consumer) Group() string { return c.group }

// EnsureGroup creates the consumer group if it doesn't exist. A new group
// starts at the end of the stream: a fresh process has nothing cached yet.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.stream).Group(c.group).Id("$").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks reading batches until ctx ends. Entries left unacknowledged
// by an earlier run are handled first. Read failures are logged and retried
// with exponential backoff.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.drainPending(ctx, h)

	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.group, c.consumerID).
			Count(16).Block(blockMillis).
			Streams().Key(c.stream).Id(">").
			Build())

		results, err := resp.AsXRead()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// block timeout
			if valkey.IsValkeyNil(err) {
				continue
			}
			c.logger.Warn("read change stream",
				slog.String("stream", c.stream),
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff))
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		for _, entries := range results {
			for _, e := range entries {
				c.process(ctx, e, h)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Consumer) drainPending(ctx context.Context, h Handler) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(c.group, c.consumerID).
		Count(100).
		Streams().Key(c.stream).Id("0").
		Build())
	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}
	for _, entries := range results {
		for _, e := range entries {
			c.logger.Info("recovering pending batch", slog.String("id", e.ID))
			c.process(ctx, e, h)
		}
	}
}

func (c *Consumer) process(ctx context.Context, e valkey.XRangeEntry, h Handler) {
	b, err := decodeEntry(e)
	if err != nil {
		c.logger.Error("decode batch", slog.String("error", err.Error()), slog.String("id", e.ID))
		c.ack(ctx, e.ID)
		return
	}
	if err := h.Apply(ctx, b); err != nil {
		c.logger.Error("apply batch", slog.String("error", err.Error()),
			slog.String("id", e.ID),
			slog.String("batch_id", b.ID.String()))
		return
	}
	c.ack(ctx, e.ID)
}

func decodeEntry(e valkey.XRangeEntry) (Batch, error) {
	var b Batch
	data, ok := e.FieldValues["data"]
	if !ok {
		return b, fmt.Errorf("entry %s has no data field", e.ID)
	}
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return b, fmt.Errorf("unmarshal entry %s: %w", e.ID, err)
	}
	if b.Source == "" {
		b.Source = "stream"
	}
	return b, nil
}

func (c *Consumer) ack(ctx context.Context, id string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(c.stream).Group(c.group).Id(id).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", id))
	}
}
