package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quip "github.com/JimmyFromTheEarth/quip-export"
)

type quipServer struct {
	*httptest.Server
	pdfPolls atomic.Int32
}

func newQuipServer(t *testing.T) *quipServer {
	t.Helper()

	qs := &quipServer{}

	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, body any) {
		w.Header().Set(quip.HeaderRateLimitLimit, "50")
		w.Header().Set(quip.HeaderRateLimitRemaining, "49")
		w.Header().Set(quip.HeaderRateLimitReset, "0")
		switch b := body.(type) {
		case []byte:
			_, _ = w.Write(b)
		default:
			_ = json.NewEncoder(w).Encode(b)
		}
	}

	threads := map[string]any{
		"t1": map[string]any{"thread": map[string]any{"id": "t1", "title": "Budget", "type": "spreadsheet"}},
		"t2": map[string]any{"thread": map[string]any{"id": "t2", "title": "Notes", "type": "document"}},
		"t3": map[string]any{"thread": map[string]any{"id": "t3", "title": "Report", "type": "document"}},
	}
	folders := map[string]any{
		"f1": map[string]any{
			"folder":   map[string]any{"id": "f1", "title": "Team"},
			"children": []any{map[string]any{"thread_id": "t1"}, map[string]any{"folder_id": "f2"}},
		},
		"f2": map[string]any{
			"folder":   map[string]any{"id": "f2", "title": "Archive"},
			"children": []any{map[string]any{"thread_id": "t2"}},
		},
	}
	byIDs := func(all map[string]any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			found := map[string]any{}
			for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
				if v, ok := all[id]; ok {
					found[id] = v
				}
			}
			reply(w, found)
		}
	}

	mux.HandleFunc("GET /threads/{$}", byIDs(threads))
	mux.HandleFunc("GET /folders/{$}", byIDs(folders))
	mux.HandleFunc("GET /folders/f1", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, folders["f1"])
	})
	mux.HandleFunc("/users/u1,u2", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{
			"u1": map[string]any{"id": "u1", "name": "Ada"},
			"u2": map[string]any{"id": "u2", "name": "Grace"},
		})
	})
	mux.HandleFunc("/threads/t3", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, threads["t3"])
	})
	mux.HandleFunc("POST /threads/t3/export/pdf/async", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{"request_id": "r1", "status": "PROCESSING"})
	})
	mux.HandleFunc("GET /threads/t3/export/pdf/async", func(w http.ResponseWriter, _ *http.Request) {
		qs.pdfPolls.Add(1)
		reply(w, map[string]any{"request_id": "r1", "status": "PROCESSING"})
	})
	mux.HandleFunc("/users/current", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply(w, map[string]any{"id": "u1", "name": "Ada"})
	})
	mux.HandleFunc("/threads/t1", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{"thread": map[string]any{"id": "t1", "title": "Budget", "type": "spreadsheet"}})
	})
	mux.HandleFunc("/threads/t2", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{"thread": map[string]any{"id": "t2", "title": "Notes", "type": "document"}})
	})
	mux.HandleFunc("/threads/t1/export/xlsx", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, []byte("xlsx-bytes"))
	})
	mux.HandleFunc("/threads/t2/export/docx", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, []byte("docx-bytes"))
	})
	mux.HandleFunc("/blob/t1/b1", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, []byte("png-bytes"))
	})

	qs.Server = httptest.NewServer(mux)
	t.Cleanup(qs.Close)

	return qs
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	out, err := run(t, "check", "--token", "good-token", "--api-url", server.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Access token is valid for Ada (u1)")
	assert.Contains(t, out, "getCurrentUser")
	assert.Contains(t, out, "checkUser")
}

func TestCheckCommand_RejectedToken(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	_, err := run(t, "check", "--token", "bad-token", "--api-url", server.URL)

	require.ErrorIs(t, err, quip.ErrTokenRejected)
}

func TestCheckCommand_InvalidRateLimit(t *testing.T) {
	t.Parallel()

	_, err := run(t, "check", "--token", "good-token", "--rate-limits", "2")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit must be at least 4")
}

func TestThreadCommand(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	out, err := run(t, "thread", "t1", "--token", "good-token", "--api-url", server.URL)
	require.NoError(t, err)

	assert.Contains(t, out, `"title": "Budget"`)
	assert.Contains(t, out, "getThread")
}

func TestExportCommand(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)
	dest := t.TempDir()

	out, err := run(t, "export", "t1", "t2", "--docx", "--token", "good-token", "--api-url", server.URL, "--destination", dest)
	require.NoError(t, err)

	xlsx, err := os.ReadFile(filepath.Join(dest, "Budget.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx-bytes", string(xlsx))

	docx, err := os.ReadFile(filepath.Join(dest, "Notes.docx"))
	require.NoError(t, err)
	assert.Equal(t, "docx-bytes", string(docx))

	assert.Contains(t, out, filepath.Join(dest, "Budget.xlsx"))
	assert.Contains(t, out, filepath.Join(dest, "Notes.docx"))
}

func TestExportCommand_PartialFailure(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)
	dest := t.TempDir()

	_, err := run(t, "export", "t1", "missing", "--token", "good-token", "--api-url", server.URL, "--destination", dest)

	require.EqualError(t, err, "1 of 2 threads failed to export")

	_, statErr := os.Stat(filepath.Join(dest, "Budget.xlsx"))
	assert.NoError(t, statErr)
}

func TestExportCommand_NoThreads(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	_, err := run(t, "export", "--token", "good-token", "--api-url", server.URL, "--destination", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to export")
}

func TestExportCommand_Folders(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)
	dest := t.TempDir()

	out, err := run(t, "export", "--folders", "f1", "--docx", "--token", "good-token", "--api-url", server.URL, "--destination", dest)
	require.NoError(t, err)

	xlsx, err := os.ReadFile(filepath.Join(dest, "Team", "Budget.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "xlsx-bytes", string(xlsx))

	docx, err := os.ReadFile(filepath.Join(dest, "Team", "Archive", "Notes.docx"))
	require.NoError(t, err)
	assert.Equal(t, "docx-bytes", string(docx))

	assert.Contains(t, out, "getFolder")
	assert.Contains(t, out, "getFolders")
	assert.Contains(t, out, "getThreads")
}

func TestExportCommand_FolderUnavailable(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	_, err := run(t, "export", "t1", "--folders", "gone", "--token", "good-token", "--api-url", server.URL, "--destination", t.TempDir())

	require.EqualError(t, err, "1 of 2 threads failed to export")
}

func TestExportCommand_PollFlags(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	_, err := run(t, "export", "t3",
		"--poll-interval", "1ms", "--max-polls", "2", "--timeout", "5s",
		"--token", "good-token", "--api-url", server.URL, "--destination", t.TempDir())

	require.EqualError(t, err, "1 of 1 threads failed to export")
	assert.Equal(t, int32(2), server.pdfPolls.Load())
}

func TestExportCommand_InvalidTimeout(t *testing.T) {
	t.Parallel()

	_, err := run(t, "export", "t1", "--timeout", "soon", "--token", "good-token")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--timeout")
}

func TestUserCommand(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)

	out, err := run(t, "user", "u1", "u2", "--token", "good-token", "--api-url", server.URL)
	require.NoError(t, err)

	assert.Contains(t, out, `"name": "Grace"`)
	assert.Contains(t, out, "getUser")
}

func TestUserCommand_RequiresID(t *testing.T) {
	t.Parallel()

	_, err := run(t, "user", "--token", "good-token")

	require.Error(t, err)
}

func TestBlobCommand(t *testing.T) {
	t.Parallel()

	server := newQuipServer(t)
	dest := t.TempDir()

	out, err := run(t, "blob", "t1", "b1", "--token", "good-token", "--api-url", server.URL, "--destination", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "blobs", "t1", "b1"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Contains(t, out, "Saved "+filepath.Join(dest, "blobs", "t1", "b1"))
}
