package archive

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/epw80/chat-archive-service/pkg/message"
)

// maxLineBytes bounds a single archive line; chat bodies are short but
// exports occasionally carry large attachments metadata.
const maxLineBytes = 1024 * 1024

// ErrStop can be returned from a Scan visit function to end the scan
// early without reporting an error.
var ErrStop = errors.New("archive: stop scan")

// Scan opens the file at path and lazily visits each decoded message in
// on-disk order, one line at a time. Blank lines are skipped. The scan
// reads whatever has been flushed to disk at open time, so a scan
// concurrent with an in-progress archival run may see a partial day.
func Scan(path string, visit func(*message.ArchivedMessage) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		msg, err := message.FromJSON([]byte(line))
		if err != nil {
			return fmt.Errorf("failed to decode archive line: %w", err)
		}

		if err := visit(msg); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read archive file: %w", err)
	}
	return nil
}
