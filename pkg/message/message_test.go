package message

import (
	"encoding/json"
	"testing"
)

func TestReduce_IDFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		raw  RawExportRecord
		want string
	}{
		{
			name: "msg_id wins",
			raw:  RawExportRecord{MsgID: "m1", ID: "i1", UUID: "u1"},
			want: "m1",
		},
		{
			name: "id when msg_id absent",
			raw:  RawExportRecord{ID: "i1", UUID: "u1"},
			want: "i1",
		},
		{
			name: "uuid when msg_id and id absent",
			raw:  RawExportRecord{UUID: "u1"},
			want: "u1",
		},
		{
			name: "empty string when all absent",
			raw:  RawExportRecord{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Reduce(&tt.raw)
			if msg.ID != tt.want {
				t.Errorf("Reduce() id = %q, want %q", msg.ID, tt.want)
			}
		})
	}
}

func TestReduce_BodyDefaultsToEmpty(t *testing.T) {
	msg := Reduce(&RawExportRecord{MsgID: "m1", From: "u1", To: "u2"})
	if msg.Body != "" {
		t.Errorf("expected empty body, got %q", msg.Body)
	}

	msg = Reduce(&RawExportRecord{
		MsgID:   "m2",
		Payload: RawPayload{Bodies: []RawBody{{Msg: "hello"}}},
	})
	if msg.Body != "hello" {
		t.Errorf("expected body hello, got %q", msg.Body)
	}
}

func TestReduce_TypeFallback(t *testing.T) {
	tests := []struct {
		name string
		raw  RawExportRecord
		want Type
	}{
		{"chat_type wins", RawExportRecord{ChatType: TypeGroupChat, Type: TypeChat}, TypeGroupChat},
		{"type when chat_type absent", RawExportRecord{Type: TypeGroupChat}, TypeGroupChat},
		{"defaults to chat", RawExportRecord{}, TypeChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Reduce(&tt.raw)
			if msg.Type != tt.want {
				t.Errorf("Reduce() type = %q, want %q", msg.Type, tt.want)
			}
		})
	}
}

func TestReduce_RawLine(t *testing.T) {
	line := `{"msg_id":"abc","from":"u1","to":"u2","chat_type":"chat","timestamp":1700000000000,"payload":{"bodies":[{"msg":"hi there"}]}}`

	var raw RawExportRecord
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		t.Fatalf("unmarshal raw line: %v", err)
	}

	msg := Reduce(&raw)
	if msg.ID != "abc" {
		t.Errorf("id = %q, want abc", msg.ID)
	}
	if msg.From != "u1" || msg.To != "u2" {
		t.Errorf("participants = %q -> %q, want u1 -> u2", msg.From, msg.To)
	}
	if msg.Body != "hi there" {
		t.Errorf("body = %q, want 'hi there'", msg.Body)
	}
	if msg.Time != 1700000000000 {
		t.Errorf("time = %d, want 1700000000000", msg.Time)
	}
}

func TestDeriveConversationID_DirectSymmetric(t *testing.T) {
	a := DeriveConversationID("anesh", "hari", TypeChat)
	b := DeriveConversationID("hari", "anesh", TypeChat)

	if a != b {
		t.Errorf("conversation id not symmetric: %q vs %q", a, b)
	}
	if a != "anesh_hari" {
		t.Errorf("conversation id = %q, want anesh_hari", a)
	}
}

func TestDeriveConversationID_Group(t *testing.T) {
	got := DeriveConversationID("u1", "g1", TypeGroupChat)
	if got != "group_g1" {
		t.Errorf("conversation id = %q, want group_g1", got)
	}

	// Group ids depend only on the "to" field
	other := DeriveConversationID("u2", "g1", TypeGroupChat)
	if got != other {
		t.Errorf("group conversation id varies with sender: %q vs %q", got, other)
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name      string
		msg       ArchivedMessage
		requester string
		target    string
		want      bool
	}{
		{
			name:      "direct forward",
			msg:       ArchivedMessage{From: "u1", To: "u2", Type: TypeChat},
			requester: "u1", target: "u2", want: true,
		},
		{
			name:      "direct reversed",
			msg:       ArchivedMessage{From: "u2", To: "u1", Type: TypeChat},
			requester: "u1", target: "u2", want: true,
		},
		{
			name:      "direct unrelated",
			msg:       ArchivedMessage{From: "u3", To: "u4", Type: TypeChat},
			requester: "u1", target: "u2", want: false,
		},
		{
			name:      "group by target group id",
			msg:       ArchivedMessage{From: "u1", To: "g1", Type: TypeGroupChat},
			requester: "u9", target: "g1", want: true,
		},
		{
			name:      "group wrong id",
			msg:       ArchivedMessage{From: "u1", To: "g1", Type: TypeGroupChat},
			requester: "u9", target: "g2", want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Matches(tt.requester, tt.target); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.requester, tt.target, got, tt.want)
			}
		})
	}
}

func TestArchivedMessage_JSON(t *testing.T) {
	original := &ArchivedMessage{
		ID: "1", From: "u1", To: "u2", Body: "hi", Type: TypeChat, Time: 100,
	}

	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}

	if *parsed != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestArchivedMessage_JSONFields(t *testing.T) {
	msg := &ArchivedMessage{ID: "1", From: "u1", To: "u2", Body: "x", Type: TypeChat, Time: 5}
	data, _ := msg.ToJSON()

	var result map[string]interface{}
	json.Unmarshal(data, &result)

	for _, field := range []string{"id", "from", "to", "body", "type", "time"} {
		if _, ok := result[field]; !ok {
			t.Errorf("expected %s field in JSON", field)
		}
	}
}

func BenchmarkReduce(b *testing.B) {
	raw := &RawExportRecord{
		MsgID: "m1", From: "u1", To: "u2",
		ChatType: TypeChat, Time: 1700000000000,
		Payload: RawPayload{Bodies: []RawBody{{Msg: "hello world"}}},
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = Reduce(raw)
	}
}

func BenchmarkDeriveConversationID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DeriveConversationID("u1", "u2", TypeChat)
	}
}
