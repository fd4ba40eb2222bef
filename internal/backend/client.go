package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitralabs/coco/internal/faults"
)

const userAgent = "coco/0.1.0"

// Client talks to the collection backend. A single network guard in the
// uploader serializes its use; the Client itself holds no locks.
type Client struct {
	uploadURL          string
	healthURL          string
	sessionCompleteURL string
	apiKey             string
	audioFormat        string
	client             *http.Client
}

// Options configures a Client.
type Options struct {
	UploadURL          string
	HealthURL          string
	SessionCompleteURL string
	APIKey             string
	AudioFormat        string
	Timeout            time.Duration
}

// NewClient builds a Client from options, applying a 4 second default
// timeout.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	format := strings.TrimSpace(opts.AudioFormat)
	if format == "" {
		format = "wav"
	}
	return &Client{
		uploadURL:          strings.TrimSpace(opts.UploadURL),
		healthURL:          strings.TrimSpace(opts.HealthURL),
		sessionCompleteURL: strings.TrimSpace(opts.SessionCompleteURL),
		apiKey:             opts.APIKey,
		audioFormat:        format,
		client:             &http.Client{Timeout: timeout},
	}
}

// Upload posts the raw recording bytes under filename. Success is HTTP 200
// or 201; anything else is a transient network error.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(data))
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "build upload request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "audio/"+c.audioFormat)
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Disposition",
		fmt.Sprintf("form-data; name=\"file\"; filename=\"%s\"", filename))

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "upload", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "upload",
			fmt.Sprintf("%s returned %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CheckHealth probes the health endpoint. Success is HTTP 200 exactly.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "build health request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "health probe", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "health probe",
			fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CurrentTime reads the backend's wall clock from the Date header of a
// health response. The clock service uses this to correct local time after
// the link comes back.
func (c *Client) CurrentTime(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return time.Time{}, faults.Wrap(faults.ErrTransientNetwork, "backend", "build time request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return time.Time{}, faults.Wrap(faults.ErrTransientNetwork, "backend", "time probe", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, faults.Wrap(faults.ErrTransientNetwork, "backend", "time probe",
			fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}
	stamp := resp.Header.Get("Date")
	if stamp == "" {
		return time.Time{}, faults.Wrap(faults.ErrTransientNetwork, "backend", "time probe", "response carries no Date header", nil)
	}
	parsed, err := http.ParseTime(stamp)
	if err != nil {
		return time.Time{}, faults.Wrap(faults.ErrTransientNetwork, "backend", "parse server time", stamp, err)
	}
	return parsed, nil
}

// NotifySessionComplete tells the backend the given session's queue has
// drained. A missing endpoint configuration is a quiet no-op.
func (c *Client) NotifySessionComplete(ctx context.Context, session uint32) error {
	if c.sessionCompleteURL == "" {
		return nil
	}
	endpoint, err := url.Parse(c.sessionCompleteURL)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "parse session-complete URL", c.sessionCompleteURL, err)
	}
	query := endpoint.Query()
	query.Set("recording_session", strconv.FormatUint(uint64(session), 10))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "build session-complete request", "", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "session complete", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return faults.Wrap(faults.ErrTransientNetwork, "backend", "session complete",
			fmt.Sprintf("returned %d", resp.StatusCode), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
