package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"
)

// Consumer feeds the upstream change topic into the Reconciler. Records are
// processed strictly in order within a partition and concurrently across
// partitions, which is exactly the per-key ordering the upstream contract
// promises (the topic is keyed by record id).
//
// Offsets are committed only after a whole poll has been applied, so a crash
// mid-batch redelivers; the reconciler's idempotency makes that safe.
type Consumer struct {
	client     *kgo.Client
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, rec *Reconciler, logger *slog.Logger) (*Consumer, error) {
	if rec == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, reconciler: rec, logger: logger}, nil
}

// Run polls until the context is cancelled. A transient processing failure
// aborts the run without committing, so the supervisor can restart the
// consumer and the failed records come back.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		g, gctx := errgroup.WithContext(ctx)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			records := p.Records
			g.Go(func() error {
				for _, record := range records {
					if _, err := c.reconciler.Handle(gctx, string(record.Key), record.Value); err != nil {
						return fmt.Errorf("partition %d offset %d: %w", record.Partition, record.Offset, err)
					}
				}
				return nil
			})
		})
		err := g.Wait()
		c.client.AllowRebalance()
		if err != nil {
			return fmt.Errorf("apply upstream batch: %w", err)
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.ErrorContext(ctx, "offset commit failed, records will be redelivered", "error", err)
		}
	}
}

// Close leaves the consumer group cleanly.
func (c *Consumer) Close() {
	c.client.Close()
}
