package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/qcom/accounts/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	PhoneIndex = "phone-index"
	EmailIndex = "email-index"
)

// DynamoAPI is the subset of *dynamodb.Client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoAccountRepository stores accounts in a single table keyed by
// PK=ACCOUNT#<id>, SK=METADATA, with global secondary indexes on phone and
// email.
type DynamoAccountRepository struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
	logger    *logrus.Logger
}

func NewDynamoAccountRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *DynamoAccountRepository {
	return &DynamoAccountRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger,
	}
}

func (r *DynamoAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	key := &models.Account{ID: id}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: key.GetSK()},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get account from DynamoDB")
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal account from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

func (r *DynamoAccountRepository) GetByPhone(ctx context.Context, phone string) (*models.Account, error) {
	accounts, err := r.queryIndex(ctx, PhoneIndex, "phone", phone)
	if err != nil {
		return nil, err
	}
	return pickByPhone(accounts), nil
}

func (r *DynamoAccountRepository) FindVerifiedByPhone(ctx context.Context, phone string) (*models.Account, error) {
	accounts, err := r.queryIndex(ctx, PhoneIndex, "phone", phone)
	if err != nil {
		return nil, err
	}
	var verified []*models.Account
	for _, a := range accounts {
		if a.PhoneVerified {
			verified = append(verified, a)
		}
	}
	return newest(verified), nil
}

func (r *DynamoAccountRepository) FindVerifiedByEmail(ctx context.Context, email string) (*models.Account, error) {
	accounts, err := r.queryIndex(ctx, EmailIndex, "email", email)
	if err != nil {
		return nil, err
	}
	var verified []*models.Account
	for _, a := range accounts {
		if a.EmailVerified {
			verified = append(verified, a)
		}
	}
	return newest(verified), nil
}

func (r *DynamoAccountRepository) FindPending(ctx context.Context, phone, email string) (*models.Account, error) {
	byPhone, err := r.queryIndex(ctx, PhoneIndex, "phone", phone)
	if err != nil {
		return nil, err
	}
	byEmail, err := r.queryIndex(ctx, EmailIndex, "email", email)
	if err != nil {
		return nil, err
	}

	var pending []*models.Account
	for _, a := range append(byPhone, byEmail...) {
		if !a.FullyVerified() {
			pending = append(pending, a)
		}
	}
	return newest(pending), nil
}

func (r *DynamoAccountRepository) Save(ctx context.Context, account *models.Account) error {
	now := r.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal account for DynamoDB")
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: account.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: account.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).WithField("account_id", account.ID).Error("Failed to save account in DynamoDB")
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

func (r *DynamoAccountRepository) queryIndex(ctx context.Context, index, attribute, value string) ([]*models.Account, error) {
	var (
		accounts []*models.Account
		startKey map[string]types.AttributeValue
	)

	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String("#attr = :value"),
			ExpressionAttributeNames: map[string]string{
				"#attr": attribute,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":value": &types.AttributeValueMemberS{Value: value},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			r.logger.WithError(err).WithField("index", index).Error("Failed to query accounts in DynamoDB")
			return nil, fmt.Errorf("failed to query accounts: %w", err)
		}

		var page []models.Account
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		for i := range page {
			accounts = append(accounts, &page[i])
		}

		if len(result.LastEvaluatedKey) == 0 {
			return accounts, nil
		}
		startKey = result.LastEvaluatedKey
	}
}
