// Package archiver drives one archival run over a list of hour
// buckets: issue one app token, resolve each bucket's download URL,
// stream it through the reduction pipeline into a single shared
// archive writer, and flush the run's conversation accumulator into
// the index once the last bucket is done.
package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/epw80/chat-archive-service/pkg/archive"
	appconfig "github.com/epw80/chat-archive-service/pkg/config"
	"github.com/epw80/chat-archive-service/pkg/index"
	"github.com/epw80/chat-archive-service/pkg/message"
	"github.com/epw80/chat-archive-service/pkg/pipeline"
	"github.com/epw80/chat-archive-service/pkg/provider"
	"github.com/google/uuid"
)

// DefaultHourWindow is the number of hour buckets a scheduled run covers.
const DefaultHourWindow = 24

// Archiver orchestrates archival runs. Hour buckets within one run are
// processed strictly sequentially; nothing coordinates two concurrent
// runs beyond the writer's append-mode semantics.
type Archiver struct {
	provider    provider.Provider
	index       index.ConversationIndex
	httpClient  *http.Client
	archiveDir  string
	loc         *time.Location
	bucketDelay time.Duration
	logger      *slog.Logger

	now func() time.Time // overridable in tests
}

// New creates an archiver from the application config.
func New(p provider.Provider, idx index.ConversationIndex, cfg *appconfig.Config, logger *slog.Logger) (*Archiver, error) {
	loc, err := time.LoadLocation(cfg.ArchiveTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive timezone %q: %w", cfg.ArchiveTimezone, err)
	}

	return &Archiver{
		provider:    p,
		index:       idx,
		httpClient:  http.DefaultClient,
		archiveDir:  cfg.ArchiveDir,
		loc:         loc,
		bucketDelay: time.Duration(cfg.BucketDelayMs) * time.Millisecond,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Location returns the fixed time zone archival runs are scheduled in.
func (a *Archiver) Location() *time.Location {
	return a.loc
}

// ArchiveChatHistory runs one archival pass over the given hour
// buckets, defaulting to the past 24 hours when none are given. The
// result is a human-readable status string: per-bucket detail stays in
// the logs.
func (a *Archiver) ArchiveChatHistory(ctx context.Context, hours []string) string {
	if len(hours) == 0 {
		hours = PastHours(a.now(), DefaultHourWindow, a.loc)
	}

	if err := a.archiveRun(ctx, hours); err != nil {
		a.logger.Error("archival run failed",
			slog.String("error", err.Error()))
		return fmt.Sprintf("error while archiving chat history: %v", err)
	}
	return "chat history archived successfully"
}

// archiveRun performs the run. Only a token failure or an archive
// directory failure is fatal; every per-bucket failure is logged and
// the loop continues.
func (a *Archiver) archiveRun(ctx context.Context, hours []string) error {
	logger := a.logger.With(slog.String("runId", uuid.NewString()))

	token, err := a.provider.IssueAppToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to issue app token: %w", err)
	}

	// The run's start date names the file for every bucket, including
	// backfilled historical hours. A run crossing midnight keeps filing
	// under its start date.
	start := a.now().In(a.loc)
	day := start.Format("2006-01-02")
	indexDate := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	writer, err := archive.OpenWriter(a.archiveDir, day)
	if err != nil {
		return fmt.Errorf("failed to open archive writer: %w", err)
	}

	acc := NewAccumulator()

	// Release the writer and flush the index no matter how many
	// buckets failed. Defer order matters: the writer must be closed
	// before the flush so an index entry never precedes durable data.
	defer a.flushIndex(ctx, logger, acc, writer.FileName(), indexDate)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close archive writer",
				slog.String("error", err.Error()))
		}
		logger.Info("archival run completed",
			slog.String("file", writer.FileName()),
			slog.Int("hours", len(hours)))
	}()

	for i, hour := range hours {
		if i > 0 && a.bucketDelay > 0 {
			// Spread requests out under provider rate limits.
			select {
			case <-time.After(a.bucketDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		a.processBucket(ctx, logger, hour, token, writer, acc)
	}

	return nil
}

// processBucket archives one hour bucket. All failures are recovered
// here: a single bad hour never aborts the run.
func (a *Archiver) processBucket(ctx context.Context, logger *slog.Logger, hour, token string, writer *archive.Writer, acc *Accumulator) {
	logger.Info("processing hour bucket", slog.String("hour", hour))

	url, err := a.provider.GetDownloadURL(ctx, hour, token)
	if err != nil {
		logger.Error("failed to resolve download url",
			slog.String("hour", hour),
			slog.String("error", err.Error()))
		return
	}
	if url == "" {
		logger.Debug("no export for hour", slog.String("hour", hour))
		return
	}

	var appended int
	err = pipeline.Stream(ctx, a.httpClient, url, func(m *message.ArchivedMessage) error {
		if err := writer.Append(m); err != nil {
			return err
		}
		acc.Observe(m)
		appended++
		return nil
	})
	if err != nil {
		logger.Error("failed to archive hour bucket",
			slog.String("hour", hour),
			slog.String("error", err.Error()))
		return
	}

	logger.Info("hour bucket archived",
		slog.String("hour", hour),
		slog.Int("messages", appended))
}

// flushIndex performs the run's single batched index upsert. A flush
// failure is logged and swallowed: the messages are already durably
// appended and the index is advisory.
func (a *Archiver) flushIndex(ctx context.Context, logger *slog.Logger, acc *Accumulator, fileName string, date time.Time) {
	if acc.Len() == 0 {
		return
	}

	if err := a.index.BulkUpsert(ctx, acc.IDs(), fileName, date); err != nil {
		logger.Error("conversation index flush failed",
			slog.String("fileName", fileName),
			slog.String("error", err.Error()))
		return
	}

	logger.Info("conversation index flushed",
		slog.String("fileName", fileName),
		slog.Int("conversations", acc.Len()))
}
