package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qcom/accounts/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAccountRepository struct {
	col    *mongo.Collection
	now    func() time.Time
	logger *logrus.Logger
}

func NewMongoAccountRepository(db *mongo.Database, collection string, logger *logrus.Logger) *MongoAccountRepository {
	return &MongoAccountRepository{
		col:    db.Collection(collection),
		now:    time.Now,
		logger: logger,
	}
}

// EnsureIndexes creates lookup indexes plus partial unique indexes that only
// cover verified phone and email values.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "updatedAt", Value: -1}}},
		{
			Keys: bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().
				SetName("verified_phone_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"phoneVerified": true}),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("verified_email_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"emailVerified": true}),
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to create MongoDB indexes")
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoAccountRepository) GetByPhone(ctx context.Context, phone string) (*models.Account, error) {
	account, err := r.FindVerifiedByPhone(ctx, phone)
	if err != nil || account != nil {
		return account, err
	}
	return r.findOne(ctx, bson.M{"phone": phone})
}

func (r *MongoAccountRepository) FindVerifiedByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"phone": phone, "phoneVerified": true})
}

func (r *MongoAccountRepository) FindVerifiedByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"email": email, "emailVerified": true})
}

func (r *MongoAccountRepository) FindPending(ctx context.Context, phone, email string) (*models.Account, error) {
	filter := bson.M{
		"$and": bson.A{
			bson.M{"$or": bson.A{bson.M{"phone": phone}, bson.M{"email": email}}},
			bson.M{"$or": bson.A{bson.M{"phoneVerified": false}, bson.M{"emailVerified": false}}},
		},
	}
	return r.findOne(ctx, filter)
}

func (r *MongoAccountRepository) Save(ctx context.Context, account *models.Account) error {
	now := r.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": account.ID}, account, options.Replace().SetUpsert(true))
	if err != nil {
		r.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to save account in MongoDB")
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var account models.Account
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	err := r.col.FindOne(ctx, filter, opts).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to find account in MongoDB")
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}
