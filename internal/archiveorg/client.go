// Package archiveorg is the remote archive capability: item existence, IAS3
// uploads, metadata patches and identifier search against archive.org.
package archiveorg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"thirdcoast.systems/vodarchive/internal/httpx"
)

const (
	DefaultS3BaseURL   = "https://s3.us.archive.org"
	DefaultSiteBaseURL = "https://archive.org"
)

var ErrNoCredentials = errors.New("archiveorg: access key and secret are required")

// StatusError is an unexpected archive.org response.
type StatusError struct {
	Op         string
	Identifier string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archiveorg: %s %s: status %d: %s", e.Op, e.Identifier, e.StatusCode, e.Body)
}

type Client struct {
	http      *httpx.Client
	accessKey string
	secretKey string

	S3Base   string
	SiteBase string
	Logger   *slog.Logger
}

func New(hc *httpx.Client, accessKey, secretKey string) *Client {
	if hc == nil {
		hc = httpx.New()
	}
	return &Client{
		http:      hc,
		accessKey: strings.TrimSpace(accessKey),
		secretKey: strings.TrimSpace(secretKey),
		S3Base:    DefaultS3BaseURL,
		SiteBase:  DefaultSiteBaseURL,
	}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) hasCredentials() bool {
	return c.accessKey != "" && c.secretKey != ""
}

func (c *Client) site() string {
	return strings.TrimRight(c.SiteBase, "/")
}

// ItemExists reports whether identifier names an existing item. archive.org
// answers an empty JSON object for unknown items.
func (c *Client) ItemExists(ctx context.Context, identifier string) (bool, error) {
	var body map[string]json.RawMessage
	err := c.http.GetJSON(ctx, c.site()+"/metadata/"+url.PathEscape(identifier), nil, &body)
	if errors.Is(err, httpx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(body) > 0, nil
}

// FileResult is the outcome of uploading one file.
type FileResult struct {
	Path       string
	Name       string
	StatusCode int
	Err        error
}

func (r FileResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Upload PUTs every file into the item, creating it when needed. Item
// metadata travels with the first file. Every file gets a result; a failure
// never stops the remaining transfers.
func (c *Client) Upload(ctx context.Context, identifier string, files []string, meta Metadata) []FileResult {
	results := make([]FileResult, 0, len(files))
	for i, path := range files {
		res := FileResult{Path: path, Name: filepath.Base(path)}
		if !c.hasCredentials() {
			res.Err = ErrNoCredentials
			results = append(results, res)
			continue
		}

		var header http.Header
		if i == 0 {
			header = meta.headers()
		}
		res.StatusCode, res.Err = c.put(ctx, identifier, path, header)
		if res.Err != nil {
			c.logger().Warn("archive upload failed", "identifier", identifier, "file", res.Name, "error", res.Err)
		} else {
			c.logger().Info("archive upload", "identifier", identifier, "file", res.Name, "status", res.StatusCode)
		}
		results = append(results, res)
	}
	return results
}

func (c *Client) put(ctx context.Context, identifier, path string, extra http.Header) (int, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	target := strings.TrimRight(c.S3Base, "/") + "/" + url.PathEscape(identifier) + "/" + url.PathEscape(filepath.Base(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, nil)
	if err != nil {
		return 0, err
	}
	// Body stays nil; every attempt opens the file afresh.
	req.ContentLength = st.Size()
	req.GetBody = func() (io.ReadCloser, error) { return os.Open(path) }

	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "LOW "+c.accessKey+":"+c.secretKey)
	req.Header.Set("x-amz-auto-make-bucket", "1")
	req.Header.Set("x-archive-size-hint", fmt.Sprint(st.Size()))

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &StatusError{Op: "upload", Identifier: identifier, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp.StatusCode, nil
}

type writeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ModifyMetadata applies meta to an existing item through the metadata write
// API.
func (c *Client) ModifyMetadata(ctx context.Context, identifier string, meta Metadata) error {
	if !c.hasCredentials() {
		return ErrNoCredentials
	}
	patch, err := json.Marshal(meta.patch())
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("-target", "metadata")
	form.Set("-patch", string(patch))
	form.Set("access", c.accessKey)
	form.Set("secret", c.secretKey)

	target := c.site() + "/metadata/" + url.PathEscape(identifier)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode >= 300 {
		return &StatusError{Op: "modify metadata", Identifier: identifier, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 300 || !out.Success {
		// Unchanged metadata is reported as an error but is not a failure.
		if strings.Contains(out.Error, "no changes") {
			return nil
		}
		return &StatusError{Op: "modify metadata", Identifier: identifier, StatusCode: resp.StatusCode, Body: out.Error}
	}
	return nil
}

type searchResponse struct {
	Response struct {
		Docs []struct {
			Identifier string `json:"identifier"`
		} `json:"docs"`
	} `json:"response"`
}

// SearchIdentifiers returns the subset of ids that exist on archive.org.
func (c *Client) SearchIdentifiers(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", "identifier:("+strings.Join(ids, " OR ")+")")
	q.Set("fl[]", "identifier")
	q.Set("rows", fmt.Sprint(len(ids)+50))
	q.Set("output", "json")

	var out searchResponse
	if err := c.http.GetJSON(ctx, c.site()+"/advancedsearch.php?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	found := make([]string, 0, len(out.Response.Docs))
	for _, d := range out.Response.Docs {
		if d.Identifier != "" {
			found = append(found, d.Identifier)
		}
	}
	return found, nil
}
