// Package export turns Quip threads into files, using the rate-limited client
// for every API call and a BlobWriter for persistence.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
)

// Thread types reported by the API.
const (
	TypeDocument    = "document"
	TypeSpreadsheet = "spreadsheet"
	TypeSlides      = "slides"
	TypeChat        = "chat"
)

// Export formats, used as file extensions.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatXLSX = "xlsx"
)

const (
	maxFileNameLength = 120

	// maxBatchSize caps the ids sent in one GetThreads or GetFolders call.
	maxBatchSize = 100
)

var (
	ErrThreadUnavailable = errors.New("thread could not be fetched")
	ErrFolderUnavailable = errors.New("folder could not be fetched")
	ErrUnsupportedType   = errors.New("thread type cannot be exported")
	ErrExportFailed      = errors.New("thread export failed")
)

// Client is the part of the Quip client the exporter uses.
type Client interface {
	GetFolder(ctx context.Context, folderID string) (map[string]any, bool)
	GetFolders(ctx context.Context, folderIDs ...string) (map[string]any, bool)
	GetThread(ctx context.Context, threadID string) (map[string]any, bool)
	GetThreads(ctx context.Context, threadIDs ...string) (map[string]any, bool)
	GetThreadMessages(ctx context.Context, threadID string) ([]any, bool)
	GetBlob(ctx context.Context, threadID, blobID string) ([]byte, bool)
	GetDOCX(ctx context.Context, threadID string) ([]byte, bool)
	GetXLSX(ctx context.Context, threadID string) ([]byte, bool)
	ExportToPDF(ctx context.Context, threadID string) ([]byte, bool)
}

type Options struct {
	// DOCX exports documents as Word files instead of PDF.
	DOCX bool

	// Comments also writes the thread's messages as JSON next to the export.
	Comments bool
}

// Result describes one exported thread.
type Result struct {
	ThreadID string
	Title    string
	Type     string
	Format   string
	Path     string
	Size     int
	Comments string
}

// Failure records an item that could not be exported during a folder walk.
type Failure struct {
	ID  string
	Err error
}

// FolderReport is the outcome of exporting one folder tree.
type FolderReport struct {
	Results  []*Result
	Skipped  []string
	Failures []Failure
}

type Exporter struct {
	client  Client
	writer  BlobWriter
	logger  *zap.Logger
	options Options

	mu    sync.Mutex
	names map[string]string
}

func NewExporter(client Client, writer BlobWriter, logger *zap.Logger, options Options) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Exporter{
		client:  client,
		writer:  writer,
		logger:  logger,
		options: options,
		names:   make(map[string]string),
	}
}

// ExportThread exports one thread into the destination root. Spreadsheets
// are written as XLSX, documents as PDF through an asynchronous export job,
// or as DOCX when enabled. Slides always go through the PDF export.
func (e *Exporter) ExportThread(ctx context.Context, threadID string) (*Result, error) {
	thread, ok := e.client.GetThread(ctx, threadID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrThreadUnavailable, threadID)
	}

	return e.writeThread(ctx, threadID, thread, "")
}

// ExportFolder exports every thread below a folder, mirroring the folder
// titles as directories. Threads are fetched in batches. A folder reachable
// through several parents is exported once. Failures of single threads or
// subfolders are collected in the report; only an unreadable root folder is
// returned as an error.
func (e *Exporter) ExportFolder(ctx context.Context, folderID string) (*FolderReport, error) {
	folder, ok := e.client.GetFolder(ctx, folderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFolderUnavailable, folderID)
	}

	report := &FolderReport{}
	visited := map[string]bool{folderID: true}

	e.walkFolder(ctx, folderID, folder, "", visited, report)

	e.logger.Info("Exported folder",
		zap.String("folder_id", folderID),
		zap.Int("threads", len(report.Results)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failures)),
	)

	return report, nil
}

func (e *Exporter) walkFolder(ctx context.Context, folderID string, folder map[string]any, parent string, visited map[string]bool, report *FolderReport) {
	title := folderTitle(folder)
	if title == "" {
		title = folderID
	}
	dir := path.Join(parent, FileName(title))

	threadIDs, folderIDs := folderChildren(folder)

	e.logger.Debug("Exporting folder",
		zap.String("folder_id", folderID),
		zap.String("dir", dir),
		zap.Int("threads", len(threadIDs)),
		zap.Int("folders", len(folderIDs)),
	)

	e.exportThreads(ctx, threadIDs, dir, report)

	pending := make([]string, 0, len(folderIDs))
	for _, id := range folderIDs {
		if !visited[id] {
			visited[id] = true
			pending = append(pending, id)
		}
	}

	for chunk := range slices.Chunk(pending, maxBatchSize) {
		folders, ok := e.client.GetFolders(ctx, chunk...)
		for _, id := range chunk {
			sub, _ := folders[id].(map[string]any)
			if !ok || sub == nil {
				report.Failures = append(report.Failures, Failure{ID: id, Err: fmt.Errorf("%w: %s", ErrFolderUnavailable, id)})
				continue
			}
			e.walkFolder(ctx, id, sub, dir, visited, report)
		}
	}
}

func (e *Exporter) exportThreads(ctx context.Context, threadIDs []string, dir string, report *FolderReport) {
	for chunk := range slices.Chunk(threadIDs, maxBatchSize) {
		threads, ok := e.client.GetThreads(ctx, chunk...)
		for _, id := range chunk {
			thread, _ := threads[id].(map[string]any)
			if !ok || thread == nil {
				report.Failures = append(report.Failures, Failure{ID: id, Err: fmt.Errorf("%w: %s", ErrThreadUnavailable, id)})
				continue
			}

			result, err := e.writeThread(ctx, id, thread, dir)
			switch {
			case errors.Is(err, ErrUnsupportedType):
				e.logger.Debug("Skipping thread", zap.String("thread_id", id), zap.Error(err))
				report.Skipped = append(report.Skipped, id)
			case err != nil:
				report.Failures = append(report.Failures, Failure{ID: id, Err: err})
			default:
				report.Results = append(report.Results, result)
			}
		}
	}
}

func (e *Exporter) writeThread(ctx context.Context, threadID string, thread map[string]any, dir string) (*Result, error) {
	title, threadType := threadInfo(thread)
	if title == "" {
		title = threadID
	}

	format, fetch, err := e.exportFunc(threadType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s)", err, threadID, threadType)
	}

	log := e.logger.With(
		zap.String("thread_id", threadID),
		zap.String("type", threadType),
		zap.String("format", format),
	)
	log.Debug("Exporting thread")

	blob, ok := fetch(ctx, threadID)
	if !ok {
		return nil, fmt.Errorf("%w: %s as %s", ErrExportFailed, threadID, format)
	}

	base := e.reserve(dir, FileName(title), threadID)
	result := &Result{
		ThreadID: threadID,
		Title:    title,
		Type:     threadType,
		Format:   format,
		Path:     base + "." + format,
		Size:     len(blob),
	}

	if err := e.writer.Write(ctx, result.Path, blob); err != nil {
		return nil, err
	}

	if e.options.Comments {
		commentsPath, err := e.exportComments(ctx, threadID, base)
		if err != nil {
			return nil, err
		}
		result.Comments = commentsPath
	}

	log.Info("Exported thread", zap.String("path", result.Path), zap.Int("bytes", result.Size))

	return result, nil
}

// reserve returns the path, without extension, a thread is written to. Names
// are unique per exporter, compared case-insensitively: when another thread
// already holds dir/name, the thread id is appended.
func (e *Exporter) reserve(dir, name, threadID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := path.Join(dir, name)
	if owner, taken := e.names[strings.ToLower(base)]; taken && owner != threadID {
		base = path.Join(dir, fmt.Sprintf("%s (%s)", name, FileName(threadID)))
	}
	e.names[strings.ToLower(base)] = threadID

	return base
}

// ExportBlob stores an embedded image or attachment under
// blobs/<threadID>/<blobID>.
func (e *Exporter) ExportBlob(ctx context.Context, threadID, blobID string) (string, error) {
	blob, ok := e.client.GetBlob(ctx, threadID, blobID)
	if !ok {
		return "", fmt.Errorf("%w: blob %s of %s", ErrExportFailed, blobID, threadID)
	}

	target := path.Join("blobs", FileName(threadID), FileName(blobID))

	if err := e.writer.Write(ctx, target, blob); err != nil {
		return "", err
	}

	e.logger.Info("Exported blob",
		zap.String("thread_id", threadID),
		zap.String("blob_id", blobID),
		zap.String("path", target),
		zap.Int("bytes", len(blob)),
	)

	return target, nil
}

func (e *Exporter) exportFunc(threadType string) (string, func(context.Context, string) ([]byte, bool), error) {
	switch threadType {
	case TypeSpreadsheet:
		return FormatXLSX, e.client.GetXLSX, nil
	case TypeDocument:
		if e.options.DOCX {
			return FormatDOCX, e.client.GetDOCX, nil
		}
		return FormatPDF, e.client.ExportToPDF, nil
	case TypeSlides:
		return FormatPDF, e.client.ExportToPDF, nil
	default:
		return "", nil, ErrUnsupportedType
	}
}

func (e *Exporter) exportComments(ctx context.Context, threadID, base string) (string, error) {
	messages, ok := e.client.GetThreadMessages(ctx, threadID)
	if !ok {
		return "", fmt.Errorf("%w: comments of %s", ErrExportFailed, threadID)
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode comments of %s: %w", threadID, err)
	}

	target := base + ".comments.json"
	if err := e.writer.Write(ctx, target, data); err != nil {
		return "", err
	}

	return target, nil
}

func threadInfo(thread map[string]any) (title, threadType string) {
	info, _ := thread["thread"].(map[string]any)
	if info == nil {
		info = thread
	}

	title, _ = info["title"].(string)
	threadType, _ = info["type"].(string)

	return strings.TrimSpace(title), strings.ToLower(strings.TrimSpace(threadType))
}

func folderTitle(folder map[string]any) string {
	info, _ := folder["folder"].(map[string]any)
	if info == nil {
		info = folder
	}

	title, _ := info["title"].(string)

	return strings.TrimSpace(title)
}

// folderChildren splits the children of a folder response into thread and
// folder ids. Restricted children carry no id and are left out.
func folderChildren(folder map[string]any) (threadIDs, folderIDs []string) {
	children, _ := folder["children"].([]any)

	for _, child := range children {
		entry, _ := child.(map[string]any)
		if id, _ := entry["thread_id"].(string); id != "" {
			threadIDs = append(threadIDs, id)
			continue
		}
		if id, _ := entry["folder_id"].(string); id != "" {
			folderIDs = append(folderIDs, id)
		}
	}

	return threadIDs, folderIDs
}

// FileName turns a thread title into a portable file name.
func FileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, title)

	name = strings.Trim(strings.TrimSpace(name), ".")

	if runes := []rune(name); len(runes) > maxFileNameLength {
		name = strings.TrimSpace(string(runes[:maxFileNameLength]))
	}

	if name == "" {
		return "untitled"
	}

	return name
}
