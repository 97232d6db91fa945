package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AsyncDispatcher delivers each message on its own goroutine.
type AsyncDispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(sender Sender, timeout time.Duration, logger *logrus.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncDispatcher{sender: sender, timeout: timeout, logger: logger}
}

// Notify detaches from the request context so delivery outlives the response.
func (d *AsyncDispatcher) Notify(_ context.Context, msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"channel": msg.Channel,
				"to":      msg.To,
			}).Error("Failed to deliver notification")
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}
