package index

const (
	// TableName is the name of the DynamoDB table for the conversation index
	TableName = "conversation-index"

	// Attribute names
	AttrConversationID = "ConversationID"
	AttrFileName       = "FileName"
	AttrDate           = "Date"
)

// TableSchema returns the DynamoDB table creation parameters
type TableSchema struct {
	TableName string
	// Primary key: one entry per (conversationId, fileName) pair, which
	// is what makes upserts idempotent.
	PartitionKey string
	SortKey      string
}

// GetTableSchema returns the schema configuration for the index table
func GetTableSchema() TableSchema {
	return TableSchema{
		TableName:    TableName,
		PartitionKey: AttrConversationID,
		SortKey:      AttrFileName,
	}
}
