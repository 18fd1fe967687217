// Package consumer drives the bus-side of the pipeline: polls the
// configured topic under a consumer group, dispatches each record to a
// fixed worker pool while preserving per-partition order, and commits
// manually only once the pipeline has returned a terminal outcome for
// that record.
package consumer

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/wisbric/orderenrich/pkg/failureledger"
	"github.com/wisbric/orderenrich/pkg/order"
	"github.com/wisbric/orderenrich/pkg/pipeline"
)

const (
	sessionTimeout  = 30 * time.Second
	heartbeatPeriod = 10 * time.Second
	maxPollInterval = 300 * time.Second
	maxPollRecords  = 1
	defaultWorkers  = 3
)

// Runner drives a single decoded intent through the pipeline. Satisfied
// by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, intent order.Intent) (pipeline.Outcome, error)
}

// Consumer polls brokers and dispatches records to the pipeline.
type Consumer struct {
	client  *kgo.Client
	run     Runner
	ledger  *failureledger.Ledger
	logger  *slog.Logger
	workers int
}

// Config configures the underlying kgo client.
type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Workers       int
}

// New creates a Consumer. Workers defaults to 3 when zero.
func New(cfg Config, run Runner, ledger *failureledger.Ledger, logger *slog.Logger) (*Consumer, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.SessionTimeout(sessionTimeout),
		kgo.HeartbeatInterval(heartbeatPeriod),
		kgo.RebalanceTimeout(maxPollInterval),
	)
	if err != nil {
		return nil, err
	}

	return &Consumer{client: client, run: run, ledger: ledger, logger: logger, workers: workers}, nil
}

// Close releases the underlying Kafka client.
func (c *Consumer) Close() {
	c.client.Close()
}

// Run polls until ctx is cancelled, dispatching fetched records to a
// fixed pool of worker goroutines bucketed by topic-partition so that
// records from the same partition are always processed by the same
// worker, in offset order.
func (c *Consumer) Run(ctx context.Context) error {
	lanes := make([]chan *kgo.Record, c.workers)
	for i := range lanes {
		lanes[i] = make(chan *kgo.Record, maxPollRecords*4)
	}

	done := make(chan struct{})
	for i := range lanes {
		go c.worker(ctx, lanes[i], done)
	}

	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		for range lanes {
			<-done
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		for _, fetchErr := range fetches.Errors() {
			c.logger.Error("fetch error", "topic", fetchErr.Topic, "partition", fetchErr.Partition, "error", fetchErr.Err)
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			lane := lanes[partitionLane(rec, len(lanes))]
			select {
			case lane <- rec:
			case <-ctx.Done():
			}
		})
	}
}

// partitionLane maps a record's topic-partition to a fixed worker lane, so
// records from the same partition always land on the same worker and
// keep offset order; different partitions may share a lane if there are
// more partitions than workers.
func partitionLane(rec *kgo.Record, numLanes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rec.Topic))
	return int((h.Sum32() + uint32(rec.Partition)) % uint32(numLanes))
}

func (c *Consumer) worker(ctx context.Context, lane <-chan *kgo.Record, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	for rec := range lane {
		c.handle(ctx, rec)
	}
}

func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	var intent order.Intent
	if err := json.Unmarshal(rec.Value, &intent); err != nil {
		c.recordFailure(ctx, string(rec.Key), rec.Value, err, true)
		c.commit(ctx, rec)
		return
	}

	key := string(rec.Key)
	if key == "" {
		key = intent.OrderID
	}

	if err := intent.Validate(); err != nil {
		c.recordFailure(ctx, key, rec.Value, err, true)
		c.commit(ctx, rec)
		return
	}

	outcome, err := c.run.Run(ctx, intent)
	switch outcome {
	case pipeline.OutcomeEnrichmentDenied, pipeline.OutcomeDroppedValidation:
		c.recordFailure(ctx, key, rec.Value, err, true)
	case pipeline.OutcomeEnrichmentFailed:
		c.recordFailure(ctx, key, rec.Value, err, false)
	default:
		if err != nil {
			c.logger.Error("pipeline run failed outside classification", "orderId", intent.OrderID, "error", err)
		}
	}

	c.commit(ctx, rec)
}

func (c *Consumer) recordFailure(ctx context.Context, key string, message []byte, cause error, permanent bool) {
	if permanent {
		if err := c.ledger.RecordPermanent(ctx, key, string(message), cause); err != nil {
			c.logger.Error("recording permanent failure", "key", key, "error", err)
		}
		return
	}

	if _, err := c.ledger.RecordTransient(ctx, key, string(message), cause); err != nil {
		c.logger.Error("recording transient failure", "key", key, "error", err)
	}
}

func (c *Consumer) commit(ctx context.Context, rec *kgo.Record) {
	if err := c.client.CommitRecords(ctx, rec); err != nil {
		c.logger.Error("committing record", "topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
	}
}
