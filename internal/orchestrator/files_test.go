package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
}

func TestReady(t *testing.T) {
	cases := []struct {
		name  string
		files []string
		want  bool
	}{
		{"fragment beside finished video", []string{"episode.mp4", "episode.mp4.part-Frag3"}, false},
		{"video and thumbnail", []string{"episode.mp4", "episode.jpg"}, true},
		{"thumbnail only", []string{"episode.jpg", "episode.info.json"}, false},
		{"part file", []string{"episode.mp4", "episode.mp4.part"}, false},
		{"ytdl marker", []string{"episode.mp4", "episode.mp4.ytdl"}, false},
		{"aria2 control file", []string{"episode.mp4", "episode.mp4.aria2"}, false},
		{"bare fragment", []string{"episode.mp4", "episode.f137.mp4-Frag12"}, false},
		{"unmerged streams", []string{"episode.f137.mp4", "episode.f140.m4a"}, false},
		{"mkv", []string{"episode.mkv", "episode.description"}, true},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tc.files...)
			ok, err := Ready(dir)
			require.NoError(t, err)
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestReady_MissingDir(t *testing.T) {
	ok, err := Ready(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasImage(t *testing.T) {
	cases := []struct {
		name  string
		files []string
		want  bool
	}{
		{"jpg cover", []string{"episode.mp4", "episode.jpg"}, true},
		{"webp from extractor", []string{"episode.mp4", "episode.webp"}, true},
		{"upper-case png", []string{"episode.mp4", "episode.PNG"}, true},
		{"video only", []string{"episode.mp4", "episode.info.json"}, false},
		{"unfinished image", []string{"episode.mp4", "episode.jpg.part"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, tc.files...)
			require.Equal(t, tc.want, hasImage(dir))
		})
	}
	require.False(t, hasImage(filepath.Join(t.TempDir(), "missing")))
}

func TestUploadOrder_PrimaryVideoFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.jpg", "a.info.json", "ep.webm", "ep.mp4")

	paths, err := listFiles(dir)
	require.NoError(t, err)

	ordered, primary := uploadOrder(paths)
	require.Equal(t, filepath.Join(dir, "ep.mp4"), primary)
	require.Equal(t, []string{
		filepath.Join(dir, "ep.mp4"),
		filepath.Join(dir, "a.info.json"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "ep.webm"),
	}, ordered)
}

func TestUploadOrder_NoVideo(t *testing.T) {
	ordered, primary := uploadOrder([]string{"/x/b.jpg", "/x/a.json"})
	require.Empty(t, primary)
	require.Equal(t, []string{"/x/a.json", "/x/b.jpg"}, ordered)
}
