package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/ultrathink/discovery-web/internal/export"
	"github.com/ultrathink/discovery-web/internal/session"
	"github.com/ultrathink/discovery-web/pkg/log"
	"github.com/ultrathink/discovery-web/pkg/storage"
)

const exportURLExpiry = time.Hour

// ArchivedExport is an export written to artifact storage.
type ArchivedExport struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int    `json:"size"`
}

// ExportService renders session data as files and archives them.
type ExportService struct {
	storage storage.Storage
	now     func() time.Time
}

// NewExportService creates a new export service. storage may be nil, in
// which case archiving is unavailable.
func NewExportService(store storage.Storage) *ExportService {
	return &ExportService{storage: store, now: time.Now}
}

// Render builds the export of kind in format from the session's stores.
func (s *ExportService) Render(sess *session.Session, kind, format string) (*export.Document, error) {
	return export.Render(sess, kind, format, s.now())
}

// Archive renders an export and writes it under exports/<session>/.
func (s *ExportService) Archive(ctx context.Context, sess *session.Session, kind, format string) (*ArchivedExport, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("export archive is not configured")
	}

	doc, err := s.Render(sess, kind, format)
	if err != nil {
		return nil, err
	}

	key := path.Join("exports", sess.ID, doc.Filename)
	if err := s.storage.Write(ctx, key, bytes.NewReader(doc.Body), int64(len(doc.Body)), doc.ContentType); err != nil {
		return nil, fmt.Errorf("failed to archive export: %w", err)
	}

	url, err := s.storage.GetURL(ctx, key, exportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to get export url: %w", err)
	}

	l := log.Ctx(ctx)
	l.Info().Str("key", key).Int("bytes", len(doc.Body)).Msg("export archived")

	return &ArchivedExport{Key: key, URL: url, Filename: doc.Filename, Size: len(doc.Body)}, nil
}

// List returns the exports archived for a session.
func (s *ExportService) List(ctx context.Context, sess *session.Session) ([]storage.FileInfo, error) {
	if s.storage == nil {
		return []storage.FileInfo{}, nil
	}
	return s.storage.List(ctx, path.Join("exports", sess.ID)+"/")
}
