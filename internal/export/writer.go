package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// BlobWriter persists exported files.
type BlobWriter interface {
	Write(ctx context.Context, path string, blob []byte) error
}

// FileWriter writes blobs below a root directory, creating parent
// directories as needed. Paths are always resolved inside the root.
type FileWriter struct {
	fs   afero.Fs
	root string
}

var _ BlobWriter = (*FileWriter)(nil)

func NewFileWriter(fs afero.Fs, root string) *FileWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &FileWriter{fs: fs, root: filepath.Clean(root)}
}

func (w *FileWriter) Write(ctx context.Context, path string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full := w.Resolve(path)

	if err := w.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", full, err)
	}

	if err := afero.WriteFile(w.fs, full, blob, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write %s: %w", full, err)
	}

	return nil
}

// Resolve returns the location path is written to.
func (w *FileWriter) Resolve(path string) string {
	return filepath.Join(w.root, filepath.Clean(string(filepath.Separator)+path))
}
