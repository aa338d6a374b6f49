package archiver

import (
	"sort"

	"github.com/epw80/chat-archive-service/pkg/message"
)

// Accumulator collects the deduplicated set of conversation ids
// observed while one archival run's messages flow through the
// pipeline. It is scoped to a single run and discarded after the
// flush; it is not a cross-run cache.
type Accumulator struct {
	seen map[string]struct{}
}

// NewAccumulator creates an empty accumulator for one run.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// Observe records the message's conversation id.
func (a *Accumulator) Observe(msg *message.ArchivedMessage) {
	a.seen[msg.ConversationID()] = struct{}{}
}

// Len returns the number of distinct conversations observed.
func (a *Accumulator) Len() int {
	return len(a.seen)
}

// IDs returns the observed conversation ids, sorted for deterministic
// batch writes.
func (a *Accumulator) IDs() []string {
	ids := make([]string, 0, len(a.seen))
	for id := range a.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
