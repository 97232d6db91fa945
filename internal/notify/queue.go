package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const enqueueTimeout = 2 * time.Second

// RedisQueue pushes messages onto a Redis list for a Worker to deliver. The
// push runs on its own goroutine so a slow Redis never holds up the caller.
type RedisQueue struct {
	client *redis.Client
	key     string
	timeout time.Duration
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

func NewRedisQueue(client *redis.Client, key string, logger *logrus.Logger) *RedisQueue {
	return &RedisQueue{client: client, key: key, timeout: enqueueTimeout, logger: logger}
}

func (q *RedisQueue) Notify(_ context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		q.logger.WithError(err).Error("Failed to marshal notification")
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()

		if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
			q.logger.WithError(err).WithField("channel", msg.Channel).Error("Failed to enqueue notification")
		}
	}()
}

// Wait blocks until in-flight pushes finish.
func (q *RedisQueue) Wait() {
	q.wg.Wait()
}

// Worker drains a RedisQueue and delivers through a Sender.
type Worker struct {
	client      *redis.Client
	key         string
	sender      Sender
	pollTimeout time.Duration
	sendTimeout time.Duration
	logger      *logrus.Logger
}

func NewWorker(client *redis.Client, key string, sender Sender, logger *logrus.Logger) *Worker {
	return &Worker{
		client:      client,
		key:         key,
		sender:      sender,
		pollTimeout: time.Second,
		sendTimeout: 10 * time.Second,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled. Messages that fail delivery are logged
// and dropped.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithField("queue", w.key).Info("Notification worker started")
	for ctx.Err() == nil {
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			w.logger.WithError(err).Error("Failed to read notification queue")
			select {
			case <-ctx.Done():
			case <-time.After(w.pollTimeout):
			}
		}
	}
	w.logger.Info("Notification worker stopped")
	return nil
}

// ProcessOne waits up to the poll timeout for a message and delivers it. It
// reports whether a message was taken off the queue.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	res, err := w.client.BRPop(ctx, w.pollTimeout, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to pop notification: %w", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		w.logger.WithError(err).Error("Dropping malformed notification")
		return true, nil
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), w.sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, msg); err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"channel": msg.Channel,
			"to":      msg.To,
		}).Error("Failed to deliver notification")
	}
	return true, nil
}
