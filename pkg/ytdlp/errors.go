package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes recognised in yt-dlp's error output.
var (
	ErrAuth       = errors.New("ytdlp: authentication failed")
	ErrInvalidURL = errors.New("ytdlp: invalid or unsupported url")
	ErrNoContent  = errors.New("ytdlp: no extractable content")
)

var failurePatterns = []struct {
	needle string
	class  error
}{
	{"unable to log in", ErrAuth},
	{"login failed", ErrAuth},
	{"invalid username or password", ErrAuth},
	{"only available for registered users", ErrAuth},
	{"this video is only available for first members", ErrAuth},
	{"sign in to", ErrAuth},
	{"http error 401", ErrAuth},
	{"http error 403", ErrAuth},
	{"unsupported url", ErrInvalidURL},
	{"is not a valid url", ErrInvalidURL},
	{"http error 404", ErrInvalidURL},
	{"no video formats found", ErrNoContent},
	{"requested format is not available", ErrNoContent},
	{"this video is not available", ErrNoContent},
}

// Classify tags an *ExecError with ErrAuth, ErrInvalidURL or ErrNoContent when
// its stderr matches a known failure. Other errors are returned unchanged.
func Classify(err error) error {
	var ee *ExecError
	if !errors.As(err, &ee) {
		return err
	}
	text := strings.ToLower(ee.Stderr + "\n" + ee.Stdout)
	for _, p := range failurePatterns {
		if strings.Contains(text, p.needle) {
			return fmt.Errorf("%w: %w", p.class, err)
		}
	}
	return err
}

// IsInvocationFailure reports whether err is an auth, invalid-url or
// no-content failure.
func IsInvocationFailure(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrNoContent)
}
