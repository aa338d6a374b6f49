// Package pipeline streams one hour bucket's compressed export:
// fetch, gunzip, split into newline-delimited records, parse and reduce
// each record to its canonical form.
package pipeline

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/epw80/chat-archive-service/pkg/message"
)

// maxLineBytes bounds one export record line.
const maxLineBytes = 1024 * 1024

// Stream downloads the export at url and lazily visits each reduced
// message in stream order. The sequence is finite per hour bucket and
// not restartable mid-stream; a failed bucket must be re-fetched from
// the start. A malformed record aborts the whole bucket (visited
// messages before the bad line may already have been consumed).
func Stream(ctx context.Context, client *http.Client, url string, visit func(*message.ArchivedMessage) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("export download returned status %d", resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var raw message.RawExportRecord
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return fmt.Errorf("failed to parse export record: %w", err)
		}

		if err := visit(message.Reduce(&raw)); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read export stream: %w", err)
	}
	return nil
}
