// Package inference builds requests for the external inference backend and
// interprets its responses.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/autoreply/internal/model"
)

const chatPath = "/chat/agent/chat"

// BlobFetcher resolves an attachment's external URL to its raw bytes.
type BlobFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPBlobFetcher fetches attachment payloads over HTTP.
type HTTPBlobFetcher struct {
	Client *http.Client
}

func (f *HTTPBlobFetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attachment: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Request is everything needed for one backend call. Exactly one of Query
// or Audio is sent: an audio trigger suppresses the textual query.
type Request struct {
	AgentKey      string
	ClerkID       string
	CorrelationID string
	History       []Turn
	Query         string
	Audio         *model.Attachment
}

// Client talks to the inference backend. Credentials travel in headers,
// never in the body.
type Client struct {
	backendURL string
	apiToken   string
	client     *http.Client
	blobs      BlobFetcher
}

// NewClient creates a backend client. backendURL may be empty; callers
// check Configured before issuing requests.
func NewClient(backendURL, apiToken string, timeout time.Duration) *Client {
	hc := &http.Client{Timeout: timeout}
	return &Client{
		backendURL: strings.TrimRight(backendURL, "/"),
		apiToken:   apiToken,
		client:     hc,
		blobs:      &HTTPBlobFetcher{Client: hc},
	}
}

// WithBlobFetcher overrides attachment fetching (tests, local storage).
func (c *Client) WithBlobFetcher(f BlobFetcher) *Client {
	c.blobs = f
	return c
}

// Configured reports whether the backend URL and API token are present.
func (c *Client) Configured() bool {
	return c.backendURL != "" && c.apiToken != ""
}

// Respond issues the chat request and interprets the response. Any non-200
// status, transport failure, or malformed body is an error; the caller owns
// logging and the job outcome.
func (c *Client) Respond(ctx context.Context, req Request) (*Reply, error) {
	messages, err := json.Marshal(req.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	var (
		body        io.Reader
		contentType string
	)
	if req.Audio != nil {
		body, contentType, err = c.multipartBody(ctx, req, messages)
		if err != nil {
			return nil, err
		}
	} else {
		form := url.Values{
			"agent_key":       {req.AgentKey},
			"messages":        {string(messages)},
			"conversation_id": {req.CorrelationID},
			"query":           {req.Query},
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backendURL+chatPath, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("x-api-token", c.apiToken)
	httpReq.Header.Set("clerk-id", req.ClerkID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}
	return ParseReply(data)
}

// multipartBody builds the audio variant of the request: the raw audio
// bytes ride in an "audio_file" part and no "query" field is written.
func (c *Client) multipartBody(ctx context.Context, req Request, messages []byte) (io.Reader, string, error) {
	audio := req.Audio.Data
	if len(audio) == 0 {
		var err error
		audio, err = c.blobs.Fetch(ctx, req.Audio.ExternalURL)
		if err != nil {
			return nil, "", fmt.Errorf("fetch audio attachment: %w", err)
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"agent_key":       req.AgentKey,
		"messages":        string(messages),
		"conversation_id": req.CorrelationID,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("audio_file", "audio")
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
