package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// Adapter is the peer search/transfer surface the engine and the
// reconciliation loop depend on. Implementations must be safe for
// concurrent use.
type Adapter interface {
	Search(ctx context.Context, query string) ([]SearchCandidate, error)
	BeginDownload(ctx context.Context, candidate SearchCandidate) (string, error)
	ListTransfers(ctx context.Context) ([]TransferEntry, error)
	Cancel(ctx context.Context, username, transferID string, remove bool) error
	SignalCompletionAck(ctx context.Context, username, transferID string) error
}

// Client talks to the transfer daemon's HTTP API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retryCfg   *util.RetryConfig

	// searchPollInterval controls how often an in-flight search is
	// polled for responses; overridable in tests
	searchPollInterval time.Duration
	searchTimeout      time.Duration
}

// NewClient creates a new transfer daemon client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryCfg:           util.AdapterRetryConfig(),
		searchPollInterval: 500 * time.Millisecond,
		searchTimeout:      30 * time.Second,
	}
}

type searchRequest struct {
	SearchText string `json:"searchText"`
}

type searchStatus struct {
	ID         string `json:"id"`
	IsComplete bool   `json:"isComplete"`
	Responses  []struct {
		Username string `json:"username"`
		Files    []struct {
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
			BitRate  int    `json:"bitRate"`
			Length   int    `json:"length"` // seconds
		} `json:"files"`
	} `json:"responses"`
}

// Search submits a peer search and polls until the daemon reports it
// complete (or the context expires), returning the flattened candidates.
func (c *Client) Search(ctx context.Context, query string) ([]SearchCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	var created searchStatus
	if err := c.doJSON(ctx, http.MethodPost, "/api/v0/searches", searchRequest{SearchText: query}, &created); err != nil {
		return nil, err
	}
	util.DebugLog("Peer search %s submitted for %q", created.ID, query)

	deadline := time.Now().Add(c.searchTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.searchPollInterval):
		}

		var status searchStatus
		path := fmt.Sprintf("/api/v0/searches/%s?includeResponses=true", url.PathEscape(created.ID))
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &status); err != nil {
			return nil, err
		}
		if status.IsComplete || time.Now().After(deadline) {
			return flattenSearch(status), nil
		}
	}
}

func flattenSearch(status searchStatus) []SearchCandidate {
	var candidates []SearchCandidate
	for _, resp := range status.Responses {
		for _, file := range resp.Files {
			candidates = append(candidates, SearchCandidate{
				Username:         resp.Username,
				RemoteFilename:   file.Filename,
				SizeBytes:        file.Size,
				BitrateEstimate:  file.BitRate,
				ReportedDuration: file.Length,
			})
		}
	}
	return candidates
}

type downloadRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// BeginDownload asks the daemon to start fetching the candidate from its
// peer and returns the remote transfer id the daemon assigned.
func (c *Client) BeginDownload(ctx context.Context, candidate SearchCandidate) (string, error) {
	path := fmt.Sprintf("/api/v0/transfers/downloads/%s", url.PathEscape(candidate.Username))
	body := []downloadRequest{{Filename: candidate.RemoteFilename, Size: candidate.SizeBytes}}

	var created []rawFile
	if err := c.doJSON(ctx, http.MethodPost, path, body, &created); err != nil {
		return "", err
	}
	if len(created) == 0 || created[0].ID == "" {
		return "", fmt.Errorf("daemon accepted download but returned no transfer id")
	}
	util.DebugLog("Peer download %s begun for %s", created[0].ID, candidate.BaseName())
	return created[0].ID, nil
}

// ListTransfers fetches the full remote download list once, normalized
// into canonical entries. Callers share one listing per cycle.
func (c *Client) ListTransfers(ctx context.Context) ([]TransferEntry, error) {
	payload, err := c.doRaw(ctx, http.MethodGet, "/api/v0/transfers/downloads", nil)
	if err != nil {
		return nil, err
	}
	return decodeTransferList(payload)
}

// Cancel stops a remote transfer; remove additionally deletes its record
func (c *Client) Cancel(ctx context.Context, username, transferID string, remove bool) error {
	path := fmt.Sprintf("/api/v0/transfers/downloads/%s/%s?remove=%t",
		url.PathEscape(username), url.PathEscape(transferID), remove)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// SignalCompletionAck releases a completed transfer's remote record
func (c *Client) SignalCompletionAck(ctx context.Context, username, transferID string) error {
	return c.Cancel(ctx, username, transferID, true)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	payload, err := util.RetryWithBackoff(c.retryCfg, func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request: %w", err)
			}
			reader = bytes.NewReader(encoded)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("daemon status %d: service unavailable", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("daemon status %d: %s", resp.StatusCode, string(data))
		}
		return data, nil
	}, "slskd "+method+" "+path)

	if err != nil && util.IsRetryableError(err) {
		return nil, fmt.Errorf("%w: %v", util.ErrAdapterUnavailable, err)
	}
	return payload, err
}
