package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/qcom/accounts/internal/config"
	"github.com/qcom/accounts/internal/models"
	"github.com/qcom/accounts/internal/notify"
	"github.com/qcom/accounts/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type capturingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *capturingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *capturingNotifier) last(channel string) (notify.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if n.msgs[i].Channel == channel {
			return n.msgs[i], true
		}
	}
	return notify.Message{}, false
}

func (n *capturingNotifier) count(channel string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, msg := range n.msgs {
		if msg.Channel == channel {
			total++
		}
	}
	return total
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type failingStore struct {
	repository.AccountStore
}

func (failingStore) FindVerifiedByPhone(context.Context, string) (*models.Account, error) {
	return nil, errors.New("connection refused")
}

type harness struct {
	svc      *AccountService
	store    repository.AccountStore
	tokens   *JWTService
	notifier *capturingNotifier
	clock    *fakeClock
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := quietLogger()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	tokens, err := NewJWTService(&config.JWTConfig{
		SecretKey:        testSecret,
		EmailTokenExpiry: 24 * time.Hour,
	}, logger)
	require.NoError(t, err)
	tokens.SetClock(clock.Now)

	store := repository.NewMemoryRepository()
	notifier := &capturingNotifier{}

	svc := NewAccountService(
		store,
		NewBcryptHasher(bcrypt.MinCost),
		NewOTPGenerator(6),
		tokens,
		notifier,
		AccountConfig{OTPExpiry: 5 * time.Minute, VerifyURL: "http://localhost:8080/api/auth"},
		logger,
	)
	svc.SetClock(clock.Now)

	return &harness{svc: svc, store: store, tokens: tokens, notifier: notifier, clock: clock}
}

func (h *harness) account(t *testing.T, id string) *models.Account {
	t.Helper()
	acct, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, acct)
	return acct
}

var alice = RegisterInput{
	FullName: "Alice",
	Phone:    "15551234567",
	Email:    "a@x.com",
	Password: "Abcd1234!@#$",
}

// registerVerified registers alice and verifies her phone.
func (h *harness) registerVerified(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id, err := h.svc.Register(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, h.svc.VerifyPhone(ctx, id, h.account(t, id).PhoneOTP.Code))
	return id
}

func requireKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	if message != "" {
		require.EqualError(t, err, message)
	}
}
