package naming

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"thirdcoast.systems/vodarchive/internal/episode"
)

func mustRecord(t *testing.T, f episode.Fields) episode.Record {
	t.Helper()
	rec, err := episode.New(f)
	require.NoError(t, err)
	return rec
}

func sampleFields() episode.Fields {
	return episode.Fields{
		ID:            "1234",
		Title:         "Episode One",
		ShowTitle:     "Red vs. Blue",
		ChannelTitle:  "Rooster Teeth",
		AirDate:       "2020-03-04",
		SeasonNumber:  episode.IntPtr(2),
		EpisodeNumber: episode.IntPtr(5),
		Slug:          "show-2020-episode-one",
	}
}

func TestSeasonAndEpisodePadding(t *testing.T) {
	require.Equal(t, "S09", SeasonName(9))
	require.Equal(t, "S10", SeasonName(10))
	require.Equal(t, "S99", SeasonName(episode.BonusSeason))
	require.Equal(t, "E03", EpisodeNumber(episode.IntPtr(3)))
	require.Equal(t, "E12", EpisodeNumber(episode.IntPtr(12)))
	require.Equal(t, "", EpisodeNumber(nil))
}

func TestFileName_ShowMode(t *testing.T) {
	rec := mustRecord(t, sampleFields())
	require.Equal(t, "2020-03-04 - S02E05 - Episode One (1234)", FileName(rec, ModeShow))
}

func TestFileName_ShowModeEarlyAccess(t *testing.T) {
	f := sampleFields()
	f.IsEarlyAccess = true
	rec := mustRecord(t, f)
	require.Equal(t, "2020-03-04 - ★ S02E05 - Episode One (1234)", FileName(rec, ModeShow))
}

func TestFileName_ShowModeUsesUnicodeSanitizer(t *testing.T) {
	f := sampleFields()
	f.Title = "Who? What/Why"
	rec := mustRecord(t, f)
	require.Equal(t, "2020-03-04 - S02E05 - Who？ What∕Why (1234)", FileName(rec, ModeShow))
}

func TestFileName_MachineModesUseStrictSanitizer(t *testing.T) {
	f := sampleFields()
	f.Title = "Who? What/Why: Café"
	rec := mustRecord(t, f)

	want := "2020-03-04_S02E05_Who_WhatWhy_Cafe_1234"
	require.Equal(t, want, FileName(rec, ModeArchiveTemp))
	require.Equal(t, want, FileName(rec, ModeArchivist))
}

func TestFileName_IsPure(t *testing.T) {
	rec := mustRecord(t, sampleFields())
	for _, mode := range []Mode{ModeShow, ModeArchiveTemp, ModeArchivist} {
		require.Equal(t, FileName(rec, mode), FileName(rec, mode))
		require.Equal(t, ContainerPath("/b", rec, mode), ContainerPath("/b", rec, mode))
	}
}

func TestContainerPath(t *testing.T) {
	rec := mustRecord(t, sampleFields())

	require.Equal(t,
		filepath.Join("/dl", "Rooster Teeth", "Red vs. Blue", "S02", "2020-03-04 - 1234"),
		ContainerPath("/dl", rec, ModeShow))
	require.Equal(t,
		filepath.Join("/stage", "archive-1234"),
		ContainerPath("/stage", rec, ModeArchiveTemp))
	require.Equal(t,
		filepath.Join("/dl", "Rooster_Teeth", "Red_vs._Blue", "S02", "2020-03-04_1234"),
		ContainerPath("/dl", rec, ModeArchivist))
}

func TestItemIdentifier(t *testing.T) {
	rec := mustRecord(t, sampleFields())
	require.Equal(t, "archive-1234", ItemIdentifier(rec))
}

func TestBonusSuffixAppearsExactlyOnce(t *testing.T) {
	f := sampleFields()
	f.Kind = episode.Bonus
	f.SeasonNumber = nil
	rec := mustRecord(t, f)

	require.Equal(t, "archive-1234-bonus", ItemIdentifier(rec))
	for _, mode := range []Mode{ModeShow, ModeArchiveTemp, ModeArchivist} {
		name := FileName(rec, mode)
		require.Equal(t, 1, strings.Count(name, "1234-bonus"), "mode %s: %s", mode, name)
		require.Equal(t, 1, strings.Count(name, episode.BonusSuffix), "mode %s: %s", mode, name)

		leaf := filepath.Base(ContainerPath("/b", rec, mode))
		require.Equal(t, 1, strings.Count(leaf, "1234-bonus"), "mode %s: %s", mode, leaf)
	}
	require.Contains(t, ContainerPath("/b", rec, ModeShow), "S99")
}

func TestSanitizerFor_ShowDiffersFromMachineModes(t *testing.T) {
	in := `A: "B"?`
	show := SanitizerFor(ModeShow)(in)
	require.NotEqual(t, show, SanitizerFor(ModeArchiveTemp)(in))
	require.NotEqual(t, show, SanitizerFor(ModeArchivist)(in))
}

func TestMissingFieldsRenderEmpty(t *testing.T) {
	rec := mustRecord(t, episode.Fields{ID: "7"})
	require.Equal(t, " - S99 -  (7)", FileName(rec, ModeShow))
	require.Equal(t, "_S99__7", FileName(rec, ModeArchiveTemp))
}

func TestOutputTemplateAndThumbnailPath(t *testing.T) {
	rec := mustRecord(t, sampleFields())
	dir := ContainerPath("/dl", rec, ModeShow)
	require.Equal(t, filepath.Join(dir, "2020-03-04 - S02E05 - Episode One (1234).%(ext)s"), OutputTemplate("/dl", rec, ModeShow))
	require.Equal(t, filepath.Join(dir, "2020-03-04 - S02E05 - Episode One (1234).jpg"), ThumbnailPath("/dl", rec, ModeShow))
}
