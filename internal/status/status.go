// Package status prints the one-line, human-readable outcome of each episode.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Tags used at the start of every line.
const (
	TagDone    = "done"
	TagSkip    = "skip"
	TagFail    = "fail"
	TagUpload  = "upload"
	TagPartial = "partial"
	TagInfo    = "info"
)

type Printer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// New writes to w, or stdout when w is nil.
func New(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, now: time.Now}
}

// Line writes "[tag] subject: message".
func (p *Printer) Line(tag, subject, format string, args ...any) {
	if p == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if subject == "" {
		fmt.Fprintf(p.w, "[%s] %s\n", tag, msg)
		return
	}
	fmt.Fprintf(p.w, "[%s] %s: %s\n", tag, subject, msg)
}

func (p *Printer) Skip(subject, reason string) {
	p.Line(TagSkip, subject, "%s", reason)
}

func (p *Printer) Fail(subject string, err error) {
	p.Line(TagFail, subject, "%v", err)
}

// Done reports a finished episode with its on-disk size and elapsed time.
func (p *Printer) Done(subject string, size int64, started time.Time) {
	if p == nil {
		return
	}
	p.Line(TagDone, subject, "%s in %s", humanize.IBytes(uint64(max(size, 0))), p.elapsed(started))
}

// Uploaded reports an upload; partial uploads carry their file counts.
func (p *Printer) Uploaded(subject, identifier string, ok, total int) {
	if ok == total {
		p.Line(TagUpload, subject, "%s files to %s", humanize.Comma(int64(ok)), identifier)
		return
	}
	p.Line(TagPartial, subject, "%s of %s files to %s", humanize.Comma(int64(ok)), humanize.Comma(int64(total)), identifier)
}

// Summary closes a batch.
func (p *Printer) Summary(done, skipped, failed int, started time.Time) {
	if p == nil {
		return
	}
	p.Line(TagInfo, "", "batch finished in %s: %s done, %s skipped, %s failed",
		p.elapsed(started), humanize.Comma(int64(done)), humanize.Comma(int64(skipped)), humanize.Comma(int64(failed)))
}

func (p *Printer) elapsed(started time.Time) string {
	rel := humanize.RelTime(started, p.now(), "", "")
	return strings.TrimSpace(rel)
}
