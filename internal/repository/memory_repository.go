package repository

import (
	"context"
	"sync"
	"time"

	"github.com/qcom/accounts/internal/models"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	now      func() time.Time
}

// NewMemoryRepository builds an in-process store for tests and local runs.
func NewMemoryRepository() AccountStore {
	return &memoryRepository{
		accounts: make(map[string]*models.Account),
		now:      time.Now,
	}
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[id].Clone(), nil
}

func (r *memoryRepository) GetByPhone(_ context.Context, phone string) (*models.Account, error) {
	return pickByPhone(r.filter(func(a *models.Account) bool {
		return a.Phone == phone
	})), nil
}

func (r *memoryRepository) FindVerifiedByPhone(_ context.Context, phone string) (*models.Account, error) {
	return newest(r.filter(func(a *models.Account) bool {
		return a.Phone == phone && a.PhoneVerified
	})), nil
}

func (r *memoryRepository) FindVerifiedByEmail(_ context.Context, email string) (*models.Account, error) {
	return newest(r.filter(func(a *models.Account) bool {
		return a.Email == email && a.EmailVerified
	})), nil
}

func (r *memoryRepository) FindPending(_ context.Context, phone, email string) (*models.Account, error) {
	return newest(r.filter(func(a *models.Account) bool {
		return (a.Phone == phone || a.Email == email) && !a.FullyVerified()
	})), nil
}

func (r *memoryRepository) Save(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	r.accounts[account.ID] = account.Clone()
	return nil
}

func (r *memoryRepository) filter(match func(*models.Account) bool) []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Account
	for _, a := range r.accounts {
		if match(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func newest(accounts []*models.Account) *models.Account {
	var best *models.Account
	for _, a := range accounts {
		if best == nil || a.UpdatedAt.After(best.UpdatedAt) {
			best = a
		}
	}
	return best
}
