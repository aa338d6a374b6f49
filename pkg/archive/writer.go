package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/epw80/chat-archive-service/pkg/message"
)

// FileExt is the extension of every archive file.
const FileExt = ".ndjson"

// FileName returns the archive file name for a calendar date
// (YYYY-MM-DD), e.g. "2026-02-19.ndjson".
func FileName(date string) string {
	return date + FileExt
}

// FilePath returns the full path of a date's archive file.
func FilePath(dir, date string) string {
	return filepath.Join(dir, FileName(date))
}

// Writer is an append-only, day-partitioned archive log. One Writer is
// opened per archival run and shared by every hour bucket's pipeline in
// sequence; it never truncates and never rewrites existing content.
// The file itself is created on the first append, so a run that finds
// no messages leaves no empty file behind. Not safe for concurrent use.
type Writer struct {
	file *os.File
	path string
	name string // base file name, e.g. "2026-02-19.ndjson"
	date string
}

// OpenWriter ensures the archive directory exists and prepares an
// append-mode writer for the date's file. The date is an explicit
// parameter so that backfills and day-crossing runs have a testable
// date-selection policy instead of reading the wall clock here.
func OpenWriter(dir, date string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Writer{
		path: FilePath(dir, date),
		name: FileName(date),
		date: date,
	}, nil
}

// Append writes one message as a newline-terminated JSON line, opening
// the underlying file in append mode on first use.
func (w *Writer) Append(msg *message.ArchivedMessage) error {
	if w.file == nil {
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open archive file: %w", err)
		}
		w.file = file
	}

	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// FileName returns the base name of the underlying archive file.
func (w *Writer) FileName() string {
	return w.name
}

// Date returns the calendar date the writer was opened for.
func (w *Writer) Date() string {
	return w.date
}

// Close releases the file handle if one was opened. The writer must
// not be used afterwards.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}
	w.file = nil
	return nil
}
