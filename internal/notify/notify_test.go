package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRouterDispatchesByChannel(t *testing.T) {
	sms, email := &recordingSender{}, &recordingSender{}
	router := NewRouter(sms, email)
	ctx := context.Background()

	require.NoError(t, router.Send(ctx, Message{Channel: ChannelSMS, To: "15551234567", Body: "code"}))
	require.NoError(t, router.Send(ctx, Message{Channel: ChannelEmail, To: "a@x.com", Body: "link"}))
	assert.Error(t, router.Send(ctx, Message{Channel: "pigeon"}))

	assert.Len(t, sms.sent(), 1)
	assert.Len(t, email.sent(), 1)
}

func TestAsyncDispatcherSwallowsFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	d := NewAsyncDispatcher(sender, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.Notify(ctx, Message{Channel: ChannelSMS, To: "15551234567", Body: "hi"})
	d.Wait()

	assert.Len(t, sender.sent(), 1, "delivery is detached from the caller's context")
}

func TestRedisQueueAndWorker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	logger := discardLogger()
	queue := NewRedisQueue(client, "notifications", logger)
	sender := &recordingSender{}
	worker := NewWorker(client, "notifications", sender, logger)

	queue.Notify(context.Background(), Message{Channel: ChannelSMS, To: "15551234567", Body: "first"})
	queue.Wait()
	queue.Notify(context.Background(), Message{Channel: ChannelEmail, To: "a@x.com", Subject: "s", Body: "second"})
	queue.Wait()

	length, err := client.LLen(context.Background(), "notifications").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, length)

	for i := 0; i < 2; i++ {
		ok, err := worker.ProcessOne(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	}

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "first", sent[0].Body, "queue is FIFO")
	assert.Equal(t, "a@x.com", sent[1].To)
}

func TestRedisQueueDoesNotBlockOnSlowRedis(t *testing.T) {
	// Accepts connections but never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	client := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		MaxRetries:            -1,
		ReadTimeout:           200 * time.Millisecond,
		ContextTimeoutEnabled: true,
	})
	defer client.Close()

	queue := NewRedisQueue(client, "notifications", discardLogger())
	queue.timeout = 200 * time.Millisecond

	start := time.Now()
	queue.Notify(context.Background(), Message{Channel: ChannelSMS, To: "15551234567", Body: "hi"})
	assert.Less(t, time.Since(start), 100*time.Millisecond, "enqueue happens off the caller's path")

	queue.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWorkerDropsMalformedAndFailedMessages(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sender := &recordingSender{err: errors.New("boom")}
	worker := NewWorker(client, "q", sender, discardLogger())

	_, err = mr.Lpush("q", "not-json")
	require.NoError(t, err)
	ok, err := worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	payload, _ := json.Marshal(Message{Channel: ChannelSMS, To: "1", Body: "x"})
	_, err = mr.Lpush("q", string(payload))
	require.NoError(t, err)
	ok, err = worker.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, sender.sent(), 1)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	worker := NewWorker(client, "q", &recordingSender{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestTwilioSender(t *testing.T) {
	var gotPath, gotTo, gotBody, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewTwilioSender("AC123", "secret", "+15550000000").WithBaseURL(srv.URL)
	assert.True(t, sender.Configured())

	err := sender.Send(context.Background(), Message{Channel: ChannelSMS, To: "15551234567", Body: "Your code"})
	require.NoError(t, err)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "Your code", gotBody)
}

func TestTwilioSenderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bad number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTwilioSender("AC123", "secret", "+1").WithBaseURL(srv.URL).
		Send(context.Background(), Message{To: "1", Body: "x"})
	assert.ErrorContains(t, err, "status 400")
}

func TestBrevoSender(t *testing.T) {
	var got brevoEmailRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewBrevoSender("key", "no-reply@x.com", "Accounts").WithBaseURL(srv.URL)
	assert.True(t, sender.Configured())

	err := sender.Send(context.Background(), Message{Channel: ChannelEmail, To: "a@x.com", Subject: "Verify", Body: "link"})
	require.NoError(t, err)

	assert.Equal(t, "key", apiKey)
	assert.Equal(t, "no-reply@x.com", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "a@x.com", got.To[0].Email)
	assert.Equal(t, "Verify", got.Subject)
	assert.Equal(t, "link", got.TextContent)

	assert.False(t, NewBrevoSender("", "", "").Configured())
}
