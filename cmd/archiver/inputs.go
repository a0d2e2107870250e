package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"thirdcoast.systems/vodarchive/internal/series"
)

// seriesExpander is the part of series.Expander collectURLs needs.
type seriesExpander interface {
	Expand(ctx context.Context, raw string) ([]string, error)
}

// collectURLs turns the command argument into episode URLs. An existing file
// is read as a list, a series URL is expanded, anything else is taken as one
// watch URL. single is true only in that last case.
func collectURLs(ctx context.Context, arg string, exp seriesExpander) (urls []string, single bool, err error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, false, fmt.Errorf("empty input")
	}

	if fi, err := os.Stat(arg); err == nil && fi.Mode().IsRegular() {
		urls, err := readList(arg)
		return urls, false, err
	}

	if series.IsSeriesURL(arg) {
		urls, err := exp.Expand(ctx, arg)
		if err != nil {
			return nil, false, fmt.Errorf("expand series %s: %w", arg, err)
		}
		return urls, false, nil
	}

	return []string{arg}, true, nil
}

// readList reads one URL per line. Blank lines and lines starting with # are
// skipped, as are repeats.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return urls, nil
}
