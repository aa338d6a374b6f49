package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	appconfig "github.com/epw80/chat-archive-service/pkg/config"
)

// DynamoDB caps BatchWriteItem at 25 requests per call.
const batchWriteLimit = 25

// entry is the stored shape of one index row.
type entry struct {
	ConversationID string    `dynamodbav:"ConversationID"`
	FileName       string    `dynamodbav:"FileName"`
	Date           time.Time `dynamodbav:"Date"`
}

// DynamoDBIndex implements ConversationIndex using AWS DynamoDB
type DynamoDBIndex struct {
	client *dynamodb.Client
	logger *slog.Logger
}

// NewDynamoDBIndex creates a new DynamoDB-backed conversation index
func NewDynamoDBIndex(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*DynamoDBIndex, error) {
	// Load AWS config
	var awsCfg aws.Config
	var err error

	// If using local DynamoDB endpoint, configure with static credentials
	if cfg.DynamoDBEndpoint != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.DynamoDBRegion),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		// Use default AWS credentials chain for production
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.DynamoDBRegion),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	idx := &DynamoDBIndex{
		client: client,
		logger: logger,
	}

	// Verify connection with health check
	if err := idx.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("DynamoDB health check failed: %w", err)
	}

	logger.Info("conversation index initialized",
		slog.String("region", cfg.DynamoDBRegion),
		slog.String("endpoint", cfg.DynamoDBEndpoint))

	return idx, nil
}

// BulkUpsert writes every (conversationId, fileName) entry in batched
// puts. Put on an existing key overwrites it, which refreshes the date
// and keeps the operation idempotent.
func (i *DynamoDBIndex) BulkUpsert(ctx context.Context, conversationIDs []string, fileName string, date time.Time) error {
	if len(conversationIDs) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		item, err := attributevalue.MarshalMap(entry{
			ConversationID: id,
			FileName:       fileName,
			Date:           date,
		})
		if err != nil {
			i.logger.Error("failed to marshal index entry",
				slog.String("error", err.Error()),
				slog.String("conversationId", id))
			return fmt.Errorf("failed to marshal index entry: %w", err)
		}
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for start := 0; start < len(requests); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(requests) {
			end = len(requests)
		}

		batch := requests[start:end]
		for attempt := 0; len(batch) > 0; attempt++ {
			out, err := i.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					TableName: batch,
				},
			})
			if err != nil {
				i.logger.Error("failed to upsert index batch",
					slog.String("error", err.Error()),
					slog.String("fileName", fileName),
					slog.Int("batchSize", len(batch)))
				return fmt.Errorf("failed to upsert index batch: %w", err)
			}

			batch = out.UnprocessedItems[TableName]
			if len(batch) == 0 {
				break
			}
			if attempt >= 3 {
				return fmt.Errorf("index batch left %d unprocessed items after retries", len(batch))
			}
		}
	}

	i.logger.Debug("conversation index updated",
		slog.String("fileName", fileName),
		slog.Int("conversations", len(conversationIDs)))

	return nil
}

// FindFilesForChat retrieves every archive file recorded for a
// conversation, sorted by date descending (newest first).
func (i *DynamoDBIndex) FindFilesForChat(ctx context.Context, conversationID string) ([]FileRef, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(TableName),
		KeyConditionExpression: aws.String("#cid = :cid"),
		ExpressionAttributeNames: map[string]string{
			"#cid": AttrConversationID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
	}

	result, err := i.client.Query(ctx, input)
	if err != nil {
		i.logger.Error("failed to query conversation index",
			slog.String("error", err.Error()),
			slog.String("conversationId", conversationID))
		return nil, fmt.Errorf("failed to query conversation index: %w", err)
	}

	files := make([]FileRef, 0, len(result.Items))
	for _, item := range result.Items {
		var ref FileRef
		if err := attributevalue.UnmarshalMap(item, &ref); err != nil {
			i.logger.Error("failed to unmarshal index entry",
				slog.String("error", err.Error()))
			continue
		}
		files = append(files, ref)
	}

	// The sort key is the file name; order by date for the caller.
	sort.Slice(files, func(a, b int) bool {
		return files[a].Date.After(files[b].Date)
	})

	i.logger.Debug("retrieved conversation files",
		slog.String("conversationId", conversationID),
		slog.Int("count", len(files)))

	return files, nil
}

// HealthCheck verifies DynamoDB is accessible
func (i *DynamoDBIndex) HealthCheck(ctx context.Context) error {
	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(TableName),
	}

	if _, err := i.client.DescribeTable(ctx, input); err != nil {
		return fmt.Errorf("DynamoDB health check failed: %w", err)
	}
	return nil
}

// Close releases resources (DynamoDB client doesn't need explicit cleanup)
func (i *DynamoDBIndex) Close() error {
	i.logger.Info("conversation index closed")
	return nil
}
