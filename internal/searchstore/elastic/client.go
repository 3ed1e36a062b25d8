// Package elastic implements searchstore.Store against the Elasticsearch (or
// OpenSearch) REST API.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/docsearch/internal/searchstore"
)

// Config holds connection settings.
type Config struct {
	URL      string
	Index    string
	Username string
	Password string
	Timeout  time.Duration
	// Refresh is sent with every write: "true", "false" or "wait_for".
	Refresh string
	// Language selects the stemmer of the text analyzer, e.g. "english".
	Language string
}

// Client talks to one index. It is safe for concurrent use.
type Client struct {
	baseURL    string
	index      string
	username   string
	password   string
	refresh    string
	language   string
	httpClient *http.Client
}

var _ searchstore.Store = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	refresh := cfg.Refresh
	if refresh == "" {
		refresh = "wait_for"
	}
	lang := cfg.Language
	if lang == "" {
		lang = "english"
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		index:    cfg.Index,
		username: cfg.Username,
		password: cfg.Password,
		refresh:  refresh,
		language: lang,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) indexURL(parts ...string) string {
	u := c.baseURL + "/" + url.PathEscape(c.index)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// do sends a request and returns the response body for 2xx statuses. Any
// other status is converted into a *searchstore.BackendError.
func (c *Client) do(ctx context.Context, op, method, u, contentType string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &searchstore.BackendError{Op: op, Message: err.Error(), Kind: searchstore.ErrUnavailable}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &searchstore.BackendError{Op: op, Status: resp.StatusCode, Message: err.Error(), Kind: searchstore.ErrUnavailable}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, respBody, nil
	}
	return resp.StatusCode, respBody, statusError(op, resp.StatusCode, respBody)
}

func (c *Client) doJSON(ctx context.Context, op, method, u string, in, out any) (int, error) {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", op, err)
		}
	}
	status, respBody, err := c.do(ctx, op, method, u, "application/json", body)
	if err != nil {
		return status, err
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return status, fmt.Errorf("decode %s: %w", op, err)
		}
	}
	return status, nil
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func statusError(op string, status int, body []byte) error {
	be := &searchstore.BackendError{Op: op, Status: status, Message: string(body)}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error.Type != "" {
		be.Reason = eb.Error.Type
		be.Message = eb.Error.Reason
	}

	switch {
	case be.Reason == "index_not_found_exception":
		be.Kind = searchstore.ErrIndexNotFound
	case status == http.StatusNotFound:
		be.Kind = searchstore.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		be.Kind = searchstore.ErrUnavailable
	default:
		be.Kind = searchstore.ErrRejected
	}
	return be
}

func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}
