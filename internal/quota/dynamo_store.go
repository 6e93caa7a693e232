package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type quotaItem struct {
	UserID           string `dynamodbav:"userId"`
	DailyCount       int    `dynamodbav:"dailyCount"`
	LastResetDate    string `dynamodbav:"lastResetDate,omitempty"`
	BurstCount       int    `dynamodbav:"burstCount"`
	BurstWindowStart string `dynamodbav:"burstWindowStart,omitempty"`
	ExpiresAt        int64  `dynamodbav:"expiresAt"`
}

// DynamoStore keeps one item per user keyed by userId, with a TTL attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("quota: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("quota: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func (s *DynamoStore) Load(ctx context.Context, userID uuid.UUID) (State, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            map[string]types.AttributeValue{"userId": &types.AttributeValueMemberS{Value: userID.String()}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return State{}, fmt.Errorf("quota: dynamodb get: %w", err)
	}
	if len(out.Item) == 0 {
		return State{}, nil
	}
	var item quotaItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return State{}, fmt.Errorf("quota: dynamodb unmarshal: %w", err)
	}

	st := State{DailyCount: item.DailyCount, BurstCount: item.BurstCount}
	if item.LastResetDate != "" {
		if d, err := time.ParseInLocation(dateLayout, item.LastResetDate, time.UTC); err == nil {
			st.LastResetDate = d
		}
	}
	if item.BurstWindowStart != "" {
		if ts, err := time.Parse(time.RFC3339Nano, item.BurstWindowStart); err == nil {
			st.BurstWindowStart = &ts
		}
	}
	return st, nil
}

func (s *DynamoStore) Save(ctx context.Context, userID uuid.UUID, st State) error {
	item := quotaItem{
		UserID:     userID.String(),
		DailyCount: st.DailyCount,
		BurstCount: st.BurstCount,
		ExpiresAt:  s.now().Add(stateTTL).Unix(),
	}
	if !st.LastResetDate.IsZero() {
		item.LastResetDate = st.LastResetDate.UTC().Format(dateLayout)
	}
	if st.BurstWindowStart != nil {
		item.BurstWindowStart = st.BurstWindowStart.UTC().Format(time.RFC3339Nano)
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("quota: dynamodb marshal: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("quota: dynamodb put: %w", err)
	}
	return nil
}
