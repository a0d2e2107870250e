package dedup

import "strings"

// SlugLog is the downloaded-slug log. It is read once when opened; Has never
// touches the disk.
type SlugLog struct {
	path  string
	slugs map[string]struct{}
}

// OpenSlugLog loads every slug recorded at path.
func OpenSlugLog(path string) (*SlugLog, error) {
	l := &SlugLog{path: path, slugs: make(map[string]struct{})}
	err := readLines(path, func(line string) {
		l.slugs[line] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Has reports whether slug finished downloading in an earlier run.
func (l *SlugLog) Has(slug string) bool {
	if l == nil {
		return false
	}
	_, ok := l.slugs[strings.TrimSpace(slug)]
	return ok
}

// Append records slug as downloaded.
func (l *SlugLog) Append(slug string) error {
	slug = strings.TrimSpace(slug)
	if l == nil || slug == "" || l.Has(slug) {
		return nil
	}
	if err := appendLine(l.path, slug); err != nil {
		return err
	}
	l.slugs[slug] = struct{}{}
	return nil
}

func (l *SlugLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.slugs)
}
