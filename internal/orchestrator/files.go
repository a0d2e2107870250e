package orchestrator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// videoPriorities ranks finished video containers; mp4 is what the fetch
// step merges into.
var videoPriorities = map[string]int{
	".mp4":  0,
	".webm": 1,
	".mkv":  2,
	".mov":  3,
	".avi":  4,
	".m4v":  5,
}

var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

var partialSuffixes = []string{".part", ".ytdl", ".temp", ".tmp", ".aria2"}

var (
	// ep.mp4.part-Frag3, ep.f137.mp4-Frag12
	fragmentPattern = regexp.MustCompile(`-Frag\d+(\.part)?$`)
	// unmerged format streams such as ep.f137.mp4
	formatStreamPattern = regexp.MustCompile(`\.f\d+\.[A-Za-z0-9]+$`)
)

func isPartial(name string) bool {
	for _, s := range partialSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return fragmentPattern.MatchString(name) || strings.Contains(name, ".part-Frag")
}

func isVideo(name string) bool {
	if formatStreamPattern.MatchString(name) {
		return false
	}
	_, ok := videoPriorities[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Ready reports whether dir holds a finished download: at least one finished
// video and no partial or fragment files. A missing directory is not ready.
func Ready(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	video := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if isPartial(name) || formatStreamPattern.MatchString(name) {
			return false, nil
		}
		if isVideo(name) {
			video = true
		}
	}
	return video, nil
}

// hasImage reports whether dir holds a finished cover image.
func hasImage(dir string) bool {
	paths, err := listFiles(dir)
	if err != nil {
		return false
	}
	for _, p := range paths {
		if !isPartial(p) && slices.Contains(imageExts, strings.ToLower(filepath.Ext(p))) && fileExists(p) {
			return true
		}
	}
	return false
}

// listFiles returns the regular files directly inside dir.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// pickPrimaryVideo prefers mp4, then the largest file of the best container.
func pickPrimaryVideo(paths []string) string {
	best := ""
	bestPri := int(^uint(0) >> 1)
	var bestSize int64 = -1

	for _, p := range paths {
		if !isVideo(filepath.Base(p)) {
			continue
		}
		pri := videoPriorities[strings.ToLower(filepath.Ext(p))]

		sz := int64(-1)
		if fi, err := os.Stat(p); err == nil {
			sz = fi.Size()
		}
		if best == "" || pri < bestPri || (pri == bestPri && sz > bestSize) {
			best, bestPri, bestSize = p, pri, sz
		}
	}
	return best
}

// uploadOrder puts the primary video first and the rest in name order.
func uploadOrder(paths []string) (ordered []string, primary string) {
	primary = pickPrimaryVideo(paths)
	rest := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != primary {
			rest = append(rest, p)
		}
	}
	slices.Sort(rest)
	if primary == "" {
		return rest, ""
	}
	return append([]string{primary}, rest...), primary
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}
