package dedup

import (
	"strings"

	"thirdcoast.systems/vodarchive/internal/episode"
)

// ArchiveLog mirrors yt-dlp's --download-archive file, whose lines read
// "<extractor> <id>". Bonus episodes are recorded with the -bonus suffix so
// they never collide with a regular episode sharing the base id.
//
// The file is indexed once when opened and the index is kept current by
// Append and Mark.
type ArchiveLog struct {
	path string
	ids  map[string]struct{}
}

func OpenArchiveLog(path string) (*ArchiveLog, error) {
	l := &ArchiveLog{path: path, ids: make(map[string]struct{})}
	err := readLines(path, func(line string) {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			l.ids[fields[1]] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Path is handed to yt-dlp for its own dedup of regular episodes.
func (l *ArchiveLog) Path() string {
	return l.path
}

// Contains reports whether rec has already been fetched. The match is on the
// full numeric id, so a bonus record only matches a bonus line.
func (l *ArchiveLog) Contains(rec episode.Record) bool {
	if l == nil || rec.NumericID == "" {
		return false
	}
	_, ok := l.ids[rec.NumericID]
	return ok
}

// Append records rec under extractor. yt-dlp appends regular episodes itself;
// this is used for bonus records, which it would log without the suffix.
func (l *ArchiveLog) Append(extractor string, rec episode.Record) error {
	if l == nil || rec.NumericID == "" || l.Contains(rec) {
		return nil
	}
	extractor = strings.ToLower(strings.TrimSpace(extractor))
	if extractor == "" {
		extractor = "roosterteeth"
	}
	if err := appendLine(l.path, extractor+" "+rec.NumericID); err != nil {
		return err
	}
	l.ids[rec.NumericID] = struct{}{}
	return nil
}

// Mark indexes rec without writing a line. yt-dlp has already written it for
// a regular episode it fetched during this run.
func (l *ArchiveLog) Mark(rec episode.Record) {
	if l == nil || rec.NumericID == "" {
		return
	}
	l.ids[rec.NumericID] = struct{}{}
}

// FailedUploadLog lists episode URLs whose upload did not deliver the video.
type FailedUploadLog struct {
	path string
	urls map[string]struct{}
}

func OpenFailedUploadLog(path string) (*FailedUploadLog, error) {
	l := &FailedUploadLog{path: path, urls: make(map[string]struct{})}
	if err := readLines(path, func(line string) { l.urls[line] = struct{}{} }); err != nil {
		return nil, err
	}
	return l, nil
}

// Contains reports whether an upload of url has failed before.
func (l *FailedUploadLog) Contains(url string) bool {
	if l == nil {
		return false
	}
	_, ok := l.urls[strings.TrimSpace(url)]
	return ok
}

func (l *FailedUploadLog) Append(url string) error {
	url = strings.TrimSpace(url)
	if l == nil || url == "" {
		return nil
	}
	if err := appendLine(l.path, url); err != nil {
		return err
	}
	if l.urls != nil {
		l.urls[url] = struct{}{}
	}
	return nil
}
