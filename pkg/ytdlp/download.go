package ytdlp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Resolution tiers accepted by FetchOptions.Resolution, mapped to the maximum
// frame height they allow.
var resolutionHeights = map[string]int{
	"360p":  360,
	"480p":  480,
	"540p":  540,
	"720p":  720,
	"1080p": 1080,
	"4k":    2160,
}

// Resolutions lists the accepted resolution tiers from lowest to highest.
func Resolutions() []string {
	return []string{"360p", "480p", "540p", "720p", "1080p", "4k"}
}

// ValidResolution reports whether tier is empty (no preference) or known.
func ValidResolution(tier string) bool {
	if tier == "" {
		return true
	}
	_, ok := resolutionHeights[strings.ToLower(tier)]
	return ok
}

// FetchOptions configures one download.
type FetchOptions struct {
	// OutputTemplate is the yt-dlp -o template.
	OutputTemplate string

	// ArchiveLog is passed as --download-archive when non-empty.
	ArchiveLog string

	// ConcurrentFragments is used when Accelerator is empty.
	ConcurrentFragments int

	// Accelerator names an external downloader (aria2c) that takes over
	// fragment parallelism. Set only when the tool is present on the host.
	Accelerator string

	Retries         int
	FragmentRetries int

	// Resolution limits format selection to a tier from Resolutions.
	Resolution string

	// WriteThumbnail asks yt-dlp to save the thumbnail it can find itself.
	WriteThumbnail bool
}

// aria2cArgs mirrors the accelerator tuning the archive has always used.
const aria2cArgs = "aria2c:-j 16 -x 16 -s 16 -k 1M"

// FormatSelector returns the -f expression for a resolution tier, or "" for
// no preference.
func FormatSelector(tier string) string {
	h, ok := resolutionHeights[strings.ToLower(strings.TrimSpace(tier))]
	if !ok {
		return ""
	}
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h)
}

// Args builds the yt-dlp arguments for opts, excluding the url.
func (o FetchOptions) Args() []string {
	args := []string{
		"-o", o.OutputTemplate,
		"--no-playlist",
		"--no-overwrites",
		"--continue",
		"--merge-output-format", "mp4",
		"--write-info-json",
		"--write-description",
		"--no-colors",
		"--progress",
		"--newline",
	}
	if o.ArchiveLog != "" {
		args = append(args, "--download-archive", o.ArchiveLog)
	}
	if o.Accelerator != "" {
		args = append(args, "--downloader", o.Accelerator, "--downloader-args", aria2cArgs)
	} else if o.ConcurrentFragments > 0 {
		args = append(args, "--concurrent-fragments", strconv.Itoa(o.ConcurrentFragments))
	}
	if o.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(o.Retries))
	}
	if o.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(o.FragmentRetries))
	}
	if f := FormatSelector(o.Resolution); f != "" {
		args = append(args, "--format", f)
	}
	if o.WriteThumbnail {
		args = append(args, "--write-thumbnail", "--convert-thumbnails", "jpg")
	}
	return args
}

// Fetch downloads url according to opts. It blocks until yt-dlp exits.
func (c *Client) Fetch(ctx context.Context, url string, opts FetchOptions) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(opts.OutputTemplate) == "" {
		return fmt.Errorf("ytdlp: output template is required")
	}

	_, err := c.run(ctx, append(opts.Args(), url)...)
	return err
}
