// Package history answers retrieval queries over the archived chat
// logs: full history for a conversation on one calendar date, and the
// index-backed file manifest for conversations spanning multiple days.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/epw80/chat-archive-service/pkg/archive"
	"github.com/epw80/chat-archive-service/pkg/index"
	"github.com/epw80/chat-archive-service/pkg/message"
)

// Query identifies one day of one conversation.
type Query struct {
	Date         string // YYYY-MM-DD
	TargetUserID string // peer user id, or group id for group chats
	RequesterID  string
}

// FileEntry is one archive file in a conversation's manifest.
type FileEntry struct {
	Name string `json:"name"`
	Date string `json:"date"` // YYYY-MM-DD
}

// FileMap is the manifest of archive files recorded for a conversation.
type FileMap struct {
	ConversationID  string      `json:"conversationId"`
	TotalDaysActive int         `json:"totalDaysActive"`
	Files           []FileEntry `json:"files"`
}

// Service reads persisted archive files and the conversation index. It
// opens its own read handle per call and never shares state with an
// in-progress archival run; a concurrent run means a query sees
// whatever was flushed to disk at read time.
type Service struct {
	archiveDir string
	index      index.ConversationIndex
	logger     *slog.Logger
}

// New creates a retrieval service over the given archive directory.
func New(archiveDir string, idx index.ConversationIndex, logger *slog.Logger) *Service {
	return &Service{
		archiveDir: archiveDir,
		index:      idx,
		logger:     logger,
	}
}

// HistoryByDate scans the date's archive file and returns every
// message of the queried conversation, sorted ascending by time. A
// missing file means no history and yields an empty result, not an
// error: "no messages that day" and "file never created" are
// indistinguishable and both valid.
func (s *Service) HistoryByDate(ctx context.Context, q Query) ([]*message.ArchivedMessage, error) {
	path := archive.FilePath(s.archiveDir, q.Date)

	matches := make([]*message.ArchivedMessage, 0)
	err := archive.Scan(path, func(m *message.ArchivedMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Matches(q.RequesterID, q.TargetUserID) {
			matches = append(matches, m)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no archive file for date",
				slog.String("date", q.Date))
			return matches, nil
		}
		return nil, fmt.Errorf("failed to scan archive for %s: %w", q.Date, err)
	}

	// On-disk order follows write order, not message time
	sort.Slice(matches, func(a, b int) bool {
		return matches[a].Time < matches[b].Time
	})

	s.logger.Debug("history retrieved",
		slog.String("date", q.Date),
		slog.Int("count", len(matches)))

	return matches, nil
}

// FileMap derives the conversation id for a participant pair and
// returns the manifest of archive files the index has recorded for it.
// The index is advisory: the manifest is best-effort, not guaranteed
// exhaustive.
func (s *Service) FileMap(ctx context.Context, userA, userB string, chatType message.Type) (*FileMap, error) {
	convID := message.DeriveConversationID(userA, userB, chatType)

	files, err := s.index.FindFilesForChat(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up files for %s: %w", convID, err)
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, FileEntry{
			Name: f.FileName,
			Date: f.Date.Format("2006-01-02"),
		})
	}

	return &FileMap{
		ConversationID:  convID,
		TotalDaysActive: len(entries),
		Files:           entries,
	}, nil
}
