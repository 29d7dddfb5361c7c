// internal/common/queue/consumer.go
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// MessageHandler processes one message body.
type MessageHandler func(ctx context.Context, payload []byte) error

// Consumer pops messages from a Redis list. Producers LPUSH and the consumer
// BRPOPs, so delivery is FIFO. Retryable failures are pushed back until
// MaxDeliveries; everything else goes to the poison list.
type Consumer struct {
	client  redis.UniversalClient
	cfg     config.QueueConfig
	handler MessageHandler
	logger  logger.Logger
}

func NewConsumer(client redis.UniversalClient, cfg config.QueueConfig, handler MessageHandler, log logger.Logger) *Consumer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Consumer{
		client:  client,
		cfg:     cfg,
		handler: handler,
		logger:  log.WithFields(map[string]interface{}{"component": "queue", "queue": cfg.Name}),
	}
}

// Run consumes until ctx is cancelled. In-flight messages finish before Run
// returns.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("queue consumer started", map[string]interface{}{
		"concurrency": c.cfg.Concurrency,
		"poisonQueue": c.cfg.PoisonQueue(),
	})

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c.loop(ctx, slot)
		}(i)
	}
	wg.Wait()

	c.logger.Info("queue consumer stopped", nil)
}

func (c *Consumer) loop(ctx context.Context, slot int) {
	block := config.GetDuration(c.cfg.BlockTimeout)
	for ctx.Err() == nil {
		payload, err := c.pop(ctx, block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("queue pop failed", map[string]interface{}{
				"slot":  slot,
				"error": err,
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if payload == nil {
			continue
		}
		if ctx.Err() != nil {
			// Popped during shutdown; put it back at the consuming end.
			c.restore(payload)
			return
		}
		c.dispatch(ctx, payload)
	}
}

// pop returns nil, nil when the block timeout elapses with no message.
func (c *Consumer) pop(ctx context.Context, block time.Duration) ([]byte, error) {
	res, err := c.client.BRPop(ctx, block, c.cfg.Name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res is [key, value]
	return []byte(res[1]), nil
}

// dispatch runs the handler on one message and settles it. Settlement uses
// a context detached from ctx so shutdown does not lose a message.
func (c *Consumer) dispatch(ctx context.Context, payload []byte) {
	err := c.handler(ctx, payload)

	settleCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempts are counted per message body, so redeliveries of the same
	// trigger (same courseId) share one counter.
	if err == nil {
		if herr := c.client.HDel(settleCtx, c.cfg.AttemptsKey(), string(payload)).Err(); herr != nil {
			c.logger.Error("failed to clear delivery attempts", map[string]interface{}{"error": herr})
		}
		return
	}

	attempts, herr := c.client.HIncrBy(settleCtx, c.cfg.AttemptsKey(), string(payload), 1).Result()
	if herr != nil {
		c.logger.Error("failed to record delivery attempt", map[string]interface{}{"error": herr})
	}

	fields := map[string]interface{}{
		"attempts": attempts,
		"error":    err,
	}

	if retryable(err) && attempts < int64(c.cfg.MaxDeliveries) {
		c.logger.Warn("message failed, requeueing", fields)
		if perr := c.client.LPush(settleCtx, c.cfg.Name, payload).Err(); perr != nil {
			c.logger.Error("failed to requeue message", map[string]interface{}{"error": perr})
		}
		return
	}

	c.logger.Error("message failed, moving to poison queue", fields)
	pipe := c.client.TxPipeline()
	pipe.LPush(settleCtx, c.cfg.PoisonQueue(), payload)
	pipe.HDel(settleCtx, c.cfg.AttemptsKey(), string(payload))
	if _, perr := pipe.Exec(settleCtx); perr != nil {
		c.logger.Error("failed to dead-letter message", map[string]interface{}{"error": perr})
	}
}

func (c *Consumer) restore(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.RPush(ctx, c.cfg.Name, payload).Err(); err != nil {
		c.logger.Error("failed to restore message", map[string]interface{}{"error": err})
	}
}

func retryable(err error) bool {
	if stdErr, ok := apperrors.AsStandard(err); ok {
		return stdErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Enqueue pushes one message onto a queue.
func Enqueue(ctx context.Context, client redis.UniversalClient, queue string, payload []byte) error {
	return client.LPush(ctx, queue, payload).Err()
}
