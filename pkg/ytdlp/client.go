// Package ytdlp runs the yt-dlp executable for metadata probes and episode
// downloads.
package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
)

// DefaultBinary is looked up on PATH when Client.Binary is empty.
const DefaultBinary = "yt-dlp"

// Client runs yt-dlp. The zero value is usable.
type Client struct {
	Binary string

	// Username and Password log in to the extractor. Password never appears
	// in logs or errors.
	Username string
	Password string

	// ExtraArgs go before every per-call argument.
	ExtraArgs []string

	// OnLine receives each non-blank stdout/stderr line while yt-dlp runs.
	OnLine func(stream, line string)

	Logger *slog.Logger

	runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

func New() *Client {
	return &Client{Binary: DefaultBinary}
}

func (c *Client) binary() string {
	if b := strings.TrimSpace(c.Binary); b != "" {
		return b
	}
	return DefaultBinary
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// ExecError is a yt-dlp run that exited unsuccessfully.
type ExecError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("ytdlp: %s exited", strings.Join(redacted(e.Args), " "))
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.ExitCode)
	}
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// run executes yt-dlp with the client's base arguments followed by args and
// returns its stdout. Failures come back as a classified *ExecError.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	full := slices.Concat(c.ExtraArgs, c.credentials(), args)
	if c.OnLine != nil {
		full = append([]string{"--newline"}, full...)
	}

	var stdout, stderr bytes.Buffer
	outW, errW := io.Writer(&stdout), io.Writer(&stderr)
	var lines []*lineWriter
	if c.OnLine != nil {
		lo := &lineWriter{stream: "stdout", emit: c.OnLine}
		le := &lineWriter{stream: "stderr", emit: c.OnLine}
		lines = append(lines, lo, le)
		outW, errW = io.MultiWriter(&stdout, lo), io.MultiWriter(&stderr, le)
	}

	c.logger().Debug("running yt-dlp", "binary", c.binary(), "args", redacted(full))
	run := c.runner
	if run == nil {
		run = execRunner
	}
	err := run(ctx, c.binary(), full, outW, errW)
	for _, lw := range lines {
		lw.flush()
	}
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ee := &ExecError{
		Args:   full,
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
		Err:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ee.ExitCode = exitErr.ExitCode()
	}
	return nil, Classify(ee)
}

func (c *Client) credentials() []string {
	var args []string
	if c.Username != "" {
		args = append(args, "--username", c.Username)
	}
	if c.Password != "" {
		args = append(args, "--password", c.Password)
	}
	return args
}

func execRunner(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Version reports the installed yt-dlp version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// lineWriter splits output on \r and \n, since progress updates rewrite the
// terminal line with a bare carriage return.
type lineWriter struct {
	stream string
	emit   func(stream, line string)
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			return len(p), nil
		}
		w.send(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
}

func (w *lineWriter) flush() {
	w.send(w.buf)
	w.buf = nil
}

func (w *lineWriter) send(b []byte) {
	if line := strings.TrimSpace(string(b)); line != "" {
		w.emit(w.stream, line)
	}
}

func redacted(args []string) []string {
	out := slices.Clone(args)
	for i := 0; i+1 < len(out); i++ {
		switch out[i] {
		case "--password", "-p", "--video-password":
			out[i+1] = "********"
		}
	}
	return out
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
