package message

import (
	"encoding/json"
	"sort"
	"strings"
)

// Type represents the chat type of an archived message
type Type string

const (
	TypeChat      Type = "chat"
	TypeGroupChat Type = "groupchat"
)

// ArchivedMessage is the canonical, persisted form of one chat message.
// One JSON-encoded ArchivedMessage per line in the archive files.
type ArchivedMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
	Type Type   `json:"type"`
	Time int64  `json:"time"` // epoch milliseconds
}

// RawExportRecord is the provider's loosely structured per-line shape.
// Field presence varies across export versions; Reduce normalizes it.
type RawExportRecord struct {
	MsgID    string     `json:"msg_id"`
	ID       string     `json:"id"`
	UUID     string     `json:"uuid"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	ChatType Type       `json:"chat_type"`
	Type     Type       `json:"type"`
	Time     int64      `json:"timestamp"`
	Payload  RawPayload `json:"payload"`
}

// RawPayload carries the nested message bodies of a raw export record.
type RawPayload struct {
	Bodies []RawBody `json:"bodies"`
}

// RawBody is one body element of a raw export record payload.
type RawBody struct {
	Msg string `json:"msg"`
}

// Reduce extracts the canonical ArchivedMessage from a raw export record.
// The id falls back across msg_id, id and uuid, defaulting to empty string;
// the body defaults to empty string when the nested payload is absent;
// the type defaults to "chat".
func Reduce(raw *RawExportRecord) *ArchivedMessage {
	id := raw.MsgID
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		id = raw.UUID
	}

	body := ""
	if len(raw.Payload.Bodies) > 0 {
		body = raw.Payload.Bodies[0].Msg
	}

	chatType := raw.ChatType
	if chatType == "" {
		chatType = raw.Type
	}
	if chatType == "" {
		chatType = TypeChat
	}

	return &ArchivedMessage{
		ID:   id,
		From: raw.From,
		To:   raw.To,
		Body: body,
		Type: chatType,
		Time: raw.Time,
	}
}

// ConversationID derives the index key grouping all messages of one
// conversation: "group_<to>" for group chats, otherwise the two
// participant ids sorted lexicographically and joined with "_", so the
// key is symmetric under swapping from and to.
func (m *ArchivedMessage) ConversationID() string {
	return DeriveConversationID(m.From, m.To, m.Type)
}

// DeriveConversationID computes the conversation key for a participant
// pair and chat type without requiring a full message.
func DeriveConversationID(from, to string, chatType Type) string {
	if chatType == TypeGroupChat {
		return "group_" + to
	}
	pair := []string{from, to}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// Matches reports whether the message belongs to the queried conversation:
// group chats match on the target group id, direct chats on the unordered
// participant pair.
func (m *ArchivedMessage) Matches(requesterID, targetID string) bool {
	if m.Type == TypeGroupChat {
		return m.To == targetID
	}
	return (m.From == requesterID && m.To == targetID) ||
		(m.From == targetID && m.To == requesterID)
}

// ToJSON converts the message to JSON bytes
func (m *ArchivedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON parses JSON bytes into an archived message
func FromJSON(data []byte) (*ArchivedMessage, error) {
	var msg ArchivedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
