package repository

import (
	"context"

	"github.com/qcom/accounts/internal/models"
)

// AccountStore persists accounts. Lookups return (nil, nil) when nothing
// matches. Save is a full-document upsert and the last write wins.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetByPhone prefers the phone-verified account, then the most recently
	// updated one.
	GetByPhone(ctx context.Context, phone string) (*models.Account, error)
	FindVerifiedByPhone(ctx context.Context, phone string) (*models.Account, error)
	FindVerifiedByEmail(ctx context.Context, email string) (*models.Account, error)
	// FindPending returns an account whose phone or email matches and which is
	// not yet fully verified.
	FindPending(ctx context.Context, phone, email string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// pickByPhone applies the GetByPhone preference to a candidate list.
func pickByPhone(candidates []*models.Account) *models.Account {
	for _, a := range candidates {
		if a.PhoneVerified {
			return a
		}
	}
	return newest(candidates)
}
