package index

import (
	"context"
	"time"
)

// FileRef points a conversation at one archive file.
type FileRef struct {
	FileName string    `dynamodbav:"FileName"`
	Date     time.Time `dynamodbav:"Date"`
}

// ConversationIndex defines the interface for the advisory secondary
// index mapping conversation ids to the archive files that contain
// them. The index may lag the archive (a flush can fail after messages
// were durably appended) but must never point at a file without at
// least one matching message. Implementations should be safe for
// concurrent use.
type ConversationIndex interface {
	// BulkUpsert records every conversation id against one archive file
	// in a single batched, idempotent write: at most one entry exists
	// per (conversationId, fileName) pair and re-upserting refreshes the
	// date without duplicating. An empty id list is a no-op.
	BulkUpsert(ctx context.Context, conversationIDs []string, fileName string, date time.Time) error

	// FindFilesForChat returns every archive file recorded for the
	// conversation, sorted by date descending.
	FindFilesForChat(ctx context.Context, conversationID string) ([]FileRef, error)

	// HealthCheck verifies the index backend is accessible.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the index.
	Close() error
}
