// Package dedup holds the duplicate and existence checks that let a run skip
// work already done: the downloaded-slug log, the yt-dlp archive log, the
// failed-upload log and the remote item lookup.
package dedup

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Log file names under the logs directory.
const (
	ArchiveLogName      = "archive.log"
	DownloadedLogName   = "downloaded.log"
	FailedUploadLogName = "failed_upload.log"
)

// readLines calls fn with each trimmed non-empty line of path. A missing file
// has no lines.
func readLines(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dedup: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("dedup: read %s: %w", path, err)
	}
	return nil
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("dedup: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("dedup: open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("dedup: append %s: %w", path, err)
	}
	return f.Close()
}
