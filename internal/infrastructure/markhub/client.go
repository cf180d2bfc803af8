package markhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/markhub/classifier/internal/core/domain"
)

// Client talks to the MarkHub web application over its record API.
// The auth token may be replaced at runtime when the user re-logs in.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

func New(baseURL, authToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authToken:  authToken,
	}
}

func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken != ""
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (c *Client) ListBookmarks(ctx context.Context) ([]domain.RemoteBookmark, error) {
	var list listResponse[domain.RemoteBookmark]
	if err := c.do(ctx, http.MethodGet, "/api/collections/bookmarks/records", nil, &list, "list bookmarks"); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) FindByURL(ctx context.Context, bookmarkURL string) (*domain.RemoteBookmark, error) {
	filter := url.QueryEscape(fmt.Sprintf("(url='%s')", strings.ReplaceAll(bookmarkURL, "'", "\\'")))
	path := "/api/collections/bookmarks/records?perPage=1&filter=" + filter

	var list listResponse[domain.RemoteBookmark]
	if err := c.do(ctx, http.MethodGet, path, nil, &list, "find bookmark by url"); err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, nil
	}
	return &list.Items[0], nil
}

func (c *Client) CreateBookmark(ctx context.Context, b domain.RemoteBookmark) (*domain.RemoteBookmark, error) {
	var created domain.RemoteBookmark
	if err := c.do(ctx, http.MethodPost, "/api/collections/bookmarks/records", b, &created, "create bookmark"); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateBookmark(ctx context.Context, id string, b domain.RemoteBookmark) (*domain.RemoteBookmark, error) {
	var updated domain.RemoteBookmark
	path := "/api/collections/bookmarks/records/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, b, &updated, "update bookmark"); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, id string) error {
	path := "/api/collections/bookmarks/records/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "delete bookmark")
}

func (c *Client) ListFolders(ctx context.Context) ([]domain.Folder, error) {
	var list listResponse[domain.Folder]
	if err := c.do(ctx, http.MethodGet, "/api/collections/folders/records", nil, &list, "list folders"); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// EnsureFolderPath resolves path root-to-leaf to a folder id, creating
// missing segments on the server. cache carries resolved paths across
// calls within one sync operation so repeated prefixes cost nothing.
func (c *Client) EnsureFolderPath(ctx context.Context, path []string, cache map[string]string) (string, error) {
	if len(path) == 0 {
		return "", nil
	}

	cacheKey := strings.Join(path, "/")
	if cache != nil {
		if id, ok := cache[cacheKey]; ok {
			return id, nil
		}
	}

	request := struct {
		FolderPath []string `json:"folderPath"`
	}{FolderPath: path}

	var response struct {
		FolderID string   `json:"folderId"`
		Created  []string `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/custom/ensure-folder-path", request, &response, "ensure folder path"); err != nil {
		return "", err
	}

	if cache != nil {
		cache[cacheKey] = response.FolderID
	}
	return response.FolderID, nil
}

func (c *Client) TriggerAITagSuggestion(ctx context.Context, bookmarkID string) error {
	path := "/api/custom/bookmarks/" + url.PathEscape(bookmarkID) + "/ai-suggest-and-set-tags"
	return c.do(ctx, http.MethodPost, path, nil, nil, "trigger tag suggestion")
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTransport, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// StatusError carries the HTTP status so callers can distinguish auth
// failures and missing endpoints from server faults.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("markhub %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("markhub %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	statusErr := &StatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.WrapError(domain.ErrUnauthorized, operation, statusErr)
	}
	return statusErr
}
