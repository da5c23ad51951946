// Package dynamodb stores orphaned bundles in DynamoDB.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"artion-backend/application/ports"
	"artion-backend/domain/core/entities"
	pkgerrors "artion-backend/pkg/errors"
)

// StatusIndex is the GSI keyed by orphan status
const StatusIndex = "StatusIndex"

const orphanSortKey = "ORPHAN"

// API is the subset of the DynamoDB client used by the store
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// orphanRecord is the DynamoDB item layout
type orphanRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	entities.OrphanedBundle
}

// OrphanStore implements ports.OrphanStore on a single table
type OrphanStore struct {
	client    API
	tableName string
	clock     ports.Clock
	logger    *zap.Logger
}

var _ ports.OrphanStore = (*OrphanStore)(nil)

// NewOrphanStore creates a DynamoDB orphan store
func NewOrphanStore(client API, tableName string, clock ports.Clock, logger *zap.Logger) *OrphanStore {
	return &OrphanStore{
		client:    client,
		tableName: tableName,
		clock:     clock,
		logger:    logger,
	}
}

func orphanKey(bundleID string) string {
	return fmt.Sprintf("ORPHAN#%s", bundleID)
}

func statusKey(status string) string {
	return fmt.Sprintf("STATUS#%s", status)
}

// Record stores an open orphan. Recording the same bundle twice keeps the
// first record.
func (s *OrphanStore) Record(ctx context.Context, orphan entities.OrphanedBundle) error {
	if orphan.BundleID == "" {
		return pkgerrors.NewValidationError("orphaned bundle requires a bundle id")
	}
	if orphan.Status == "" {
		orphan.Status = entities.OrphanStatusOpen
	}
	if orphan.RecordedAt.IsZero() {
		orphan.RecordedAt = s.clock.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(orphanRecord{
		PK:             orphanKey(orphan.BundleID),
		SK:             orphanSortKey,
		GSI1PK:         statusKey(orphan.Status),
		GSI1SK:         fmt.Sprintf("%s#%s", orphan.RecordedAt.UTC().Format(time.RFC3339Nano), orphan.BundleID),
		OrphanedBundle: orphan,
	})
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal orphan record").WithCause(err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			s.logger.Debug("Orphan already recorded", zap.String("bundle_id", orphan.BundleID))
			return nil
		}
		return classify(err, "record orphan")
	}

	s.logger.Info("Orphaned bundle recorded",
		zap.String("bundle_id", orphan.BundleID),
		zap.String("session_id", orphan.SessionID))
	return nil
}

// ListOpen returns unresolved orphans, oldest first
func (s *OrphanStore) ListOpen(ctx context.Context) ([]entities.OrphanedBundle, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(statusKey(entities.OrphanStatusOpen)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(StatusIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	})

	var orphans []entities.OrphanedBundle
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list orphans")
		}
		for _, item := range page.Items {
			var record orphanRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, pkgerrors.NewInternalError("failed to unmarshal orphan record").WithCause(err)
			}
			orphans = append(orphans, record.OrphanedBundle)
		}
	}

	sort.SliceStable(orphans, func(i, j int) bool {
		return orphans[i].RecordedAt.Before(orphans[j].RecordedAt)
	})
	return orphans, nil
}

// Resolve marks an orphan as cleaned up
func (s *OrphanStore) Resolve(ctx context.Context, bundleID string) error {
	now := s.clock.Now().UTC()
	update := expression.Set(expression.Name("status"), expression.Value(entities.OrphanStatusResolved)).
		Set(expression.Name("resolved_at"), expression.Value(now)).
		Set(expression.Name("GSI1PK"), expression.Value(statusKey(entities.OrphanStatusResolved)))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build expression").WithCause(err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: orphanKey(bundleID)},
			"SK": &types.AttributeValueMemberS{Value: orphanSortKey},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewNotFoundError("orphaned bundle " + bundleID)
		}
		return classify(err, "resolve orphan")
	}

	s.logger.Info("Orphaned bundle resolved", zap.String("bundle_id", bundleID))
	return nil
}

// classify maps DynamoDB API errors onto application errors
func classify(err error, operation string) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return pkgerrors.NewExternalError("dynamodb", err).WithDetail("operation", operation)
	}

	switch ae.ErrorCode() {
	case "ResourceNotFoundException":
		return pkgerrors.NewNotFoundError("orphan table").WithCause(err)
	case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
		return pkgerrors.NewUnavailableError("dynamodb").WithCause(err).WithDetail("operation", operation)
	default:
		return pkgerrors.NewExternalError("dynamodb", err).
			WithCode(ae.ErrorCode()).
			WithDetail("operation", operation)
	}
}
