// Package cms is the HTTP client for the headless CMS that holds the
// published articles.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/store"
)

// Client communicates with the CMS document API.
type Client struct {
	baseURL    string
	token      string
	dataset    string
	httpClient *http.Client
}

var _ store.Store = (*Client)(nil)

func NewClient(baseURL, token, dataset string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		dataset: dataset,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// revisionMeta is the revision metadata the CMS stores inline with each
// document.
type revisionMeta struct {
	Rev       string    `json:"_rev"`
	UpdatedAt time.Time `json:"_updatedAt"`
}

// replaceRequest is the body for PUT /documents/{id}/body.
type replaceRequest struct {
	Body json.RawMessage `json:"body"`
}

func (c *Client) endpoint(path string, q url.Values) string {
	if c.dataset != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("dataset", c.dataset)
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	return c.httpClient.Do(httpReq)
}

// statusError turns a non-success response into an error. 429 and 5xx are
// retryable.
func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &store.RetryableError{StatusCode: resp.StatusCode, Err: err}
	}
	return err
}

// FetchDocument retrieves a document and its revision.
func (c *Client) FetchDocument(ctx context.Context, id string) (store.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/documents/"+url.PathEscape(id), nil), nil)
	if err != nil {
		return store.Record{}, &store.RetryableError{Err: fmt.Errorf("fetch document: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return store.Record{}, fmt.Errorf("fetch document %s: %w", id, store.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return store.Record{}, statusError("fetch document "+id, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.Record{}, fmt.Errorf("read document: %w", err)
	}
	var rec store.Record
	if err := json.Unmarshal(data, &rec.Doc); err != nil {
		return store.Record{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	var meta revisionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return store.Record{}, fmt.Errorf("decode revision %s: %w", id, err)
	}
	if rec.Doc.ID == "" {
		rec.Doc.ID = id
	}
	rec.Revision = meta.Rev
	rec.UpdatedAt = meta.UpdatedAt
	return rec, nil
}

// ReplaceDocument overwrites the document body with blocks.
func (c *Client) ReplaceDocument(ctx context.Context, id string, blocks []block.Block) error {
	raw, err := block.MarshalBlocks(blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	body, err := json.Marshal(replaceRequest{Body: raw})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, c.endpoint("/documents/"+url.PathEscape(id)+"/body", nil), body)
	if err != nil {
		return &store.RetryableError{Err: fmt.Errorf("replace document: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("replace document %s: %w", id, store.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("replace document "+id, resp)
	}
	return nil
}

// ListDocuments lists document heads matching f.
func (c *Client) ListDocuments(ctx context.Context, f store.Filter) ([]store.Head, error) {
	q := url.Values{}
	for _, id := range f.IDs {
		q.Add("id", id)
	}
	if f.Slug != "" {
		q.Set("slug", f.Slug)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/documents", q), nil)
	if err != nil {
		return nil, &store.RetryableError{Err: fmt.Errorf("list documents: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list documents", resp)
	}

	var result struct {
		Documents []store.Head `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return result.Documents, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
