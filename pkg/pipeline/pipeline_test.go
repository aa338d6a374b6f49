package pipeline

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/epw80/chat-archive-service/pkg/message"
)

// exportServer serves body gzip-compressed, the way the provider's
// export bundles are delivered.
func exportServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		if _, err := gz.Write([]byte(body)); err != nil {
			t.Fatalf("write gzip body: %v", err)
		}
		gz.Close()
	}))
}

func TestStream_ReducesEachRecord(t *testing.T) {
	body := `{"msg_id":"1","from":"u1","to":"u2","chat_type":"chat","timestamp":100,"payload":{"bodies":[{"msg":"hi"}]}}
{"id":"2","from":"u2","to":"u1","chat_type":"chat","timestamp":50,"payload":{"bodies":[{"msg":"yo"}]}}
`
	server := exportServer(t, body)
	defer server.Close()

	var got []*message.ArchivedMessage
	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("visited %d messages, want 2", len(got))
	}
	if got[0].ID != "1" || got[0].Body != "hi" || got[0].Time != 100 {
		t.Errorf("first message = %+v", got[0])
	}
	if got[1].ID != "2" || got[1].Body != "yo" || got[1].Time != 50 {
		t.Errorf("second message = %+v", got[1])
	}
}

func TestStream_SkipsBlankLines(t *testing.T) {
	body := "\n{\"msg_id\":\"1\",\"from\":\"u1\",\"to\":\"u2\",\"timestamp\":1}\n\n   \n"
	server := exportServer(t, body)
	defer server.Close()

	var count int
	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if count != 1 {
		t.Errorf("visited %d messages, want 1", count)
	}
}

func TestStream_MalformedLineAbortsBucket(t *testing.T) {
	body := `{"msg_id":"1","from":"u1","to":"u2","timestamp":1}
{this is not json}
{"msg_id":"3","from":"u1","to":"u2","timestamp":3}
`
	server := exportServer(t, body)
	defer server.Close()

	var count int
	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		count++
		return nil
	})
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	// Records before the bad line were already consumed, the rest dropped.
	if count != 1 {
		t.Errorf("visited %d messages before abort, want 1", count)
	}
}

func TestStream_NotGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text, not gzip"))
	}))
	defer server.Close()

	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		return nil
	})
	if err == nil {
		t.Error("expected error for non-gzip body")
	}
}

func TestStream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		return nil
	})
	if err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestStream_VisitErrorPropagates(t *testing.T) {
	body := `{"msg_id":"1","from":"u1","to":"u2","timestamp":1}` + "\n"
	server := exportServer(t, body)
	defer server.Close()

	sentinel := errors.New("sink failed")
	err := Stream(context.Background(), server.Client(), server.URL, func(m *message.ArchivedMessage) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Stream() error = %v, want %v", err, sentinel)
	}
}
