package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
)

// StagedFiles is a URIReader over files already held in memory, such as the
// parts of a multipart request. Files are addressed as "staged://<name>".
type StagedFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewStagedFiles returns an empty set of staged files.
func NewStagedFiles() *StagedFiles {
	return &StagedFiles{files: make(map[string][]byte)}
}

// Stage stores data under name and returns the URI to read it back with.
func (s *StagedFiles) Stage(name string, data []byte) string {
	uri := "staged://" + name
	s.mu.Lock()
	s.files[uri] = data
	s.mu.Unlock()
	return uri
}

// ReadBase64 implements URIReader.
func (s *StagedFiles) ReadBase64(_ context.Context, uri string) (string, error) {
	s.mu.Lock()
	data, ok := s.files[uri]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no staged file at %s", uri)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
