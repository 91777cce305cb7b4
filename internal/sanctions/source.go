package sanctions

import (
	"context"
	"os"
)

// Source supplies the raw bytes of the sanctions data document.
// Implementations return an error satisfying os.IsNotExist semantics
// (errors.Is(err, fs.ErrNotExist)) when no document is available yet.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// FileSource reads the sanctions document from a path on disk
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed sanctions source
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads the document bytes
func (s *FileSource) Load(_ context.Context) ([]byte, error) {
	return os.ReadFile(s.Path)
}
