// Package wiki is the external wiki collaborator client (spec.md §4.6): the
// thin HTTP boundary the Pack Apply Orchestrator writes pages through.
// Modeled directly on the teacher's internal/cxdb/client.go — same typed
// HTTPError/ErrorEnvelope shape, same "try the canonical path, fall back to
// a compat path on 404/405" retry idiom — with turn/context vocabulary
// replaced by page/title vocabulary.
package wiki

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
)

// Client talks to the host wiki's page HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client with the teacher's 15s default timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Page is the wiki's view of one page.
type Page struct {
	PageID    string `json:"page_id"`
	Title     string `json:"title"`
	RevID     string `json:"rev_id"`
	OwnerPack string `json:"owner_pack,omitempty"`
}

// ErrorEnvelope is the wiki's structured error body shape.
type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// HTTPError is a non-2xx wiki response.
type HTTPError struct {
	Path   string
	Status int
	Code   string
	Body   string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "wiki http error"
	}
	msg := strings.TrimSpace(e.Body)
	if e.Code != "" && msg != "" {
		return fmt.Sprintf("wiki %s: status=%d code=%s message=%s", e.Path, e.Status, e.Code, msg)
	}
	if e.Code != "" {
		return fmt.Sprintf("wiki %s: status=%d code=%s", e.Path, e.Status, e.Code)
	}
	if msg != "" {
		return fmt.Sprintf("wiki %s: status=%d body=%s", e.Path, e.Status, msg)
	}
	return fmt.Sprintf("wiki %s: status=%d", e.Path, e.Status)
}

// CreatePage writes a brand-new page at title. Tries the canonical path
// first, falling back to a compat path on 404/405.
func (c *Client) CreatePage(ctx context.Context, title string, content []byte, ownerPack string) (Page, error) {
	body := map[string]any{"title": title, "content": string(content), "owner_pack": ownerPack}
	b, _ := json.Marshal(body)

	page, err := c.doPage(ctx, http.MethodPost, "/v1/pages", b)
	if err == nil {
		return page, nil
	}
	if shouldTryCompat(err) {
		if page2, err2 := c.doPage(ctx, http.MethodPost, "/v1/pages/create", b); err2 == nil {
			return page2, nil
		}
	}
	return Page{}, err
}

// UpdatePage overwrites an existing page's content.
func (c *Client) UpdatePage(ctx context.Context, pageID string, content []byte) (Page, error) {
	body := map[string]any{"content": string(content)}
	b, _ := json.Marshal(body)
	path := fmt.Sprintf("/v1/pages/%s", url.PathEscape(pageID))

	page, err := c.doPage(ctx, http.MethodPut, path, b)
	if err == nil {
		return page, nil
	}
	if shouldTryCompat(err) {
		compatPath := path + "/update"
		if page2, err2 := c.doPage(ctx, http.MethodPut, compatPath, b); err2 == nil {
			return page2, nil
		}
	}
	return Page{}, err
}

// DeletePage removes pageID from the wiki.
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	path := fmt.Sprintf("/v1/pages/%s", url.PathEscape(pageID))
	_, err := c.doPage(ctx, http.MethodDelete, path, nil)
	if err == nil {
		return nil
	}
	if shouldTryCompat(err) {
		_, err2 := c.doPage(ctx, http.MethodPost, path+"/delete", nil)
		return err2
	}
	return err
}

// LookupTitle returns the page currently owning title, or nil if no page
// exists there.
func (c *Client) LookupTitle(ctx context.Context, title string) (*Page, error) {
	path := "/v1/pages?title=" + url.QueryEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpErr(path, resp.StatusCode, raw)
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.PageID) == "" {
		return nil, nil
	}
	return &page, nil
}

// OwnerOf implements session.TitleOwnership, blocking on a bounded-timeout
// lookup since that interface carries no context of its own.
func (c *Client) OwnerOf(finalTitle string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	page, err := c.LookupTitle(ctx, finalTitle)
	if err != nil || page == nil {
		return "", false
	}
	return page.OwnerPack, true
}

func (c *Client) doPage(ctx context.Context, method, path string, body []byte) (Page, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return Page{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, httpErr(path, resp.StatusCode, raw)
	}
	if len(raw) == 0 {
		return Page{}, nil
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

func (c *Client) http() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func httpErr(path string, status int, raw []byte) error {
	var env ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return &HTTPError{Path: path, Status: status, Code: env.Error.Code, Body: env.Error.Message}
	}
	return &HTTPError{Path: path, Status: status, Body: strings.TrimSpace(string(raw))}
}

func shouldTryCompat(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusNotFound || he.Status == http.StatusMethodNotAllowed
	}
	return false
}
