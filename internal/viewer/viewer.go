// Package viewer opens aggregated documents for the user to read.
package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/visualtree/internal/errors"
	"github.com/conneroisu/visualtree/internal/logging"
)

// DocumentViewer opens a read-only view of content and returns where it
// can be found.
type DocumentViewer interface {
	OpenDocument(ctx context.Context, content, language string) (string, error)
}

// extensionFor maps a document language to a file extension.
func extensionFor(language string) string {
	if language == "markdown" {
		return ".md"
	}
	return ".txt"
}

// FileViewer writes each document to a new read-only file.
type FileViewer struct {
	dir    string
	now    func() time.Time
	logger logging.Logger
}

// NewFileViewer creates a viewer that writes into dir.
func NewFileViewer(dir string, logger logging.Logger) *FileViewer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileViewer{dir: dir, now: time.Now, logger: logger.WithComponent("viewer")}
}

// OpenDocument writes content and returns the file path.
func (v *FileViewer) OpenDocument(ctx context.Context, content, language string) (string, error) {
	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("visualtree-%s-%s%s",
		v.now().Format("20060102-150405"),
		uuid.NewString()[:8],
		extensionFor(language))
	path := filepath.Join(v.dir, name)

	if err := os.WriteFile(path, []byte(content), 0o444); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	v.logger.Info(ctx, "Document written", "path", path, "bytes", len(content))
	return path, nil
}

// Document is a stored document.
type Document struct {
	ID       string
	Content  string
	Language string
	Created  time.Time
}

// ContentType is the HTTP content type the document is served with.
func (d *Document) ContentType() string {
	if d.Language == "markdown" {
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Store keeps the most recent documents in memory, addressed by ID.
type Store struct {
	mu      sync.RWMutex
	cache   *lru.Cache[string, *Document]
	baseURL string
	onOpen  func(ctx context.Context, url string)
	logger  logging.Logger
}

// NewStore creates a store holding at most size documents.
func NewStore(size int, logger logging.Logger) (*Store, error) {
	if size <= 0 {
		return nil, errors.NewConfigError(errors.CodeConfigInvalid, "document cache size must be positive")
	}
	cache, err := lru.New[string, *Document](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{cache: cache, logger: logger.WithComponent("viewer")}, nil
}

// SetBaseURL sets the URL prefix documents are served under.
func (s *Store) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// OnOpen registers a callback run with each new document URL.
func (s *Store) OnOpen(fn func(ctx context.Context, url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = fn
}

// OpenDocument stores content and returns its URL.
func (s *Store) OpenDocument(ctx context.Context, content, language string) (string, error) {
	doc := &Document{
		ID:       uuid.NewString(),
		Content:  content,
		Language: language,
		Created:  time.Now(),
	}
	if evicted := s.cache.Add(doc.ID, doc); evicted {
		s.logger.Debug(ctx, "Evicted oldest document")
	}

	s.mu.RLock()
	url := s.baseURL + "/documents/" + doc.ID
	onOpen := s.onOpen
	s.mu.RUnlock()

	if onOpen != nil {
		onOpen(ctx, url)
	}
	return url, nil
}

// Get returns a stored document.
func (s *Store) Get(id string) (*Document, bool) {
	return s.cache.Get(id)
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Multi opens each document in every viewer.
type Multi []DocumentViewer

// OpenDocument returns the locations joined by ", ". Every viewer is
// tried even if an earlier one fails.
func (m Multi) OpenDocument(ctx context.Context, content, language string) (string, error) {
	var locations []string
	var errs []error
	for _, v := range m {
		loc, err := v.OpenDocument(ctx, content, language)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(locations, ", "), nil
}
