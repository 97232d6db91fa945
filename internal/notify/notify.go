// Package notify delivers SMS and email messages without making the caller
// wait for, or fail on, delivery.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Message describes one outbound notification.
type Message struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Sender performs a blocking delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier accepts a message for delivery and returns immediately. Delivery
// failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Router hands each message to the sender registered for its channel.
type Router struct {
	sms   Sender
	email Sender
}

func NewRouter(sms, email Sender) *Router {
	return &Router{sms: sms, email: email}
}

func (r *Router) Send(ctx context.Context, msg Message) error {
	switch msg.Channel {
	case ChannelSMS:
		return r.sms.Send(ctx, msg)
	case ChannelEmail:
		return r.email.Send(ctx, msg)
	default:
		return fmt.Errorf("unknown notification channel %q", msg.Channel)
	}
}

// LogSender writes messages to the logger instead of delivering them. It is
// used when a provider is not configured.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.WithFields(logrus.Fields{
		"channel": msg.Channel,
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	}).Info("Notification (no provider configured)")
	return nil
}
