package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/bus"
	"github.com/99souls/harvester/internal/coordinator"
	"github.com/99souls/harvester/internal/task"
)

// ResultConsumer drains the result stream and applies each envelope to the
// Task Coordinator, the bus-to-coordinator bridge that makes Ingest Result
// (§4.6) reachable from a worker's published result rather than a direct
// in-process call.
type ResultConsumer struct {
	bus         *bus.Client
	coordinator *coordinator.Coordinator
	logger      *zap.Logger
	batchSize   int64
}

// NewResultConsumer builds a ResultConsumer over busClient and coord.
func NewResultConsumer(busClient *bus.Client, coord *coordinator.Coordinator, logger *zap.Logger) *ResultConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultConsumer{bus: busClient, coordinator: coord, logger: logger, batchSize: 10}
}

// Run blocks, ingesting result envelopes until ctx is cancelled.
func (c *ResultConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.bus.ConsumeResults(ctx, c.batchSize, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("consume results failed", zap.Error(err))
			continue
		}

		for _, d := range deliveries {
			c.ingest(ctx, d)
		}
	}
}

func (c *ResultConsumer) ingest(ctx context.Context, d bus.Delivery) {
	var env task.ResultEnvelope
	if err := json.Unmarshal(d.Envelope.Payload, &env); err != nil {
		c.logger.Warn("malformed result payload, dropping", zap.Error(err), zap.String("delivery_id", d.ID))
		c.ackResult(ctx, d.ID)
		return
	}

	if _, err := c.coordinator.IngestResult(ctx, env); err != nil {
		c.logger.Error("ingest result failed", zap.Error(err), zap.String("task_id", env.TaskID), zap.String("run_id", env.RunID))
		return
	}
	c.ackResult(ctx, d.ID)
}

func (c *ResultConsumer) ackResult(ctx context.Context, id string) {
	if err := c.bus.Ack(ctx, c.bus.ResultStreamName(), id); err != nil {
		c.logger.Warn("ack result failed", zap.Error(err), zap.String("delivery_id", id))
	}
}
