package quip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// CheckUser reports whether the access token is accepted by the API. It sends
// a single request, without rate limiting or retries.
func (c *Client) CheckUser(ctx context.Context) bool {
	c.stats.Inc(OpCheckUser)

	return c.checkStatus(ctx, "/users/current")
}

func (c *Client) GetCurrentUser(ctx context.Context) (map[string]any, bool) {
	c.stats.Inc(OpGetCurrentUser)

	return getJSON[map[string]any](ctx, c, "/users/current")
}

// GetUser fetches one or more users by id.
func (c *Client) GetUser(ctx context.Context, userIDs ...string) (map[string]any, bool) {
	c.stats.Inc(OpGetUser)

	return getJSON[map[string]any](ctx, c, "/users/"+joinPathIDs(userIDs))
}

func (c *Client) GetFolder(ctx context.Context, folderID string) (map[string]any, bool) {
	c.stats.Inc(OpGetFolder)

	return getJSON[map[string]any](ctx, c, "/folders/"+url.PathEscape(folderID))
}

// GetFolders fetches several folders in one call. The result is keyed by
// folder id.
func (c *Client) GetFolders(ctx context.Context, folderIDs ...string) (map[string]any, bool) {
	c.stats.Inc(OpGetFolders)

	return getJSON[map[string]any](ctx, c, "/folders/?ids="+joinQueryIDs(folderIDs))
}

func (c *Client) GetThread(ctx context.Context, threadID string) (map[string]any, bool) {
	c.stats.Inc(OpGetThread)

	return getJSON[map[string]any](ctx, c, "/threads/"+url.PathEscape(threadID))
}

// GetThreads fetches several threads in one call. The result is keyed by
// thread id.
func (c *Client) GetThreads(ctx context.Context, threadIDs ...string) (map[string]any, bool) {
	c.stats.Inc(OpGetThreads)

	return getJSON[map[string]any](ctx, c, "/threads/?ids="+joinQueryIDs(threadIDs))
}

// GetThreadMessages returns the messages (comments) of a thread.
func (c *Client) GetThreadMessages(ctx context.Context, threadID string) ([]any, bool) {
	c.stats.Inc(OpGetThreadMessages)

	return getJSON[[]any](ctx, c, "/messages/"+url.PathEscape(threadID))
}

// GetBlob downloads an image or attachment embedded in a thread.
func (c *Client) GetBlob(ctx context.Context, threadID, blobID string) ([]byte, bool) {
	c.stats.Inc(OpGetBlob)

	return c.execute(ctx, http.MethodGet, "/blob/"+url.PathEscape(threadID)+"/"+url.PathEscape(blobID))
}

// GetPDF exports a thread to PDF synchronously. Large documents should use
// [Client.ExportToPDF] instead.
func (c *Client) GetPDF(ctx context.Context, threadID string) ([]byte, bool) {
	c.stats.Inc(OpGetPDF)

	return c.execute(ctx, http.MethodGet, exportPath(threadID, "pdf"))
}

func (c *Client) GetDOCX(ctx context.Context, threadID string) ([]byte, bool) {
	c.stats.Inc(OpGetDOCX)

	return c.execute(ctx, http.MethodGet, exportPath(threadID, "docx"))
}

func (c *Client) GetXLSX(ctx context.Context, threadID string) ([]byte, bool) {
	c.stats.Inc(OpGetXLSX)

	return c.execute(ctx, http.MethodGet, exportPath(threadID, "xlsx"))
}

func getJSON[T any](ctx context.Context, c *Client, path string) (T, bool) {
	return callJSON[T](ctx, c, http.MethodGet, path)
}

func callJSON[T any](ctx context.Context, c *Client, method, path string) (T, bool) {
	var out T

	body, ok := c.execute(ctx, method, path)
	if !ok {
		return out, false
	}

	if err := json.Unmarshal(body, &out); err != nil {
		c.options.requestLogger.Errorf("Couldn't decode response of %s %s: %v", method, path, err)
		return out, false
	}

	return out, true
}

func exportPath(threadID, format string) string {
	return "/threads/" + url.PathEscape(threadID) + "/export/" + format
}

func joinPathIDs(ids []string) string {
	escaped := make([]string, 0, len(ids))
	for _, id := range ids {
		escaped = append(escaped, url.PathEscape(strings.TrimSpace(id)))
	}

	return strings.Join(escaped, ",")
}

func joinQueryIDs(ids []string) string {
	escaped := make([]string, 0, len(ids))
	for _, id := range ids {
		escaped = append(escaped, url.QueryEscape(strings.TrimSpace(id)))
	}

	return strings.Join(escaped, ",")
}
