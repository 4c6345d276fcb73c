package library

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/library"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/platform/filestore"
	"github.com/domu-platform/domu/pkg/logger"
)

// MaxFileSize bounds uploaded documents.
const MaxFileSize = 30 << 20

const pdfContentType = "application/pdf"

// Service manages the building document library.
type Service struct {
	store storage.LibraryStore
	files filestore.Store
	log   *logger.Logger
}

// New constructs a library service.
func New(store storage.LibraryStore, files filestore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("library")
	}
	return &Service{store: store, files: files, log: log}
}

// UploadInput describes an uploaded document.
type UploadInput struct {
	Name        string
	Category    string
	FileName    string
	ContentType string
	Size        int64
}

// List returns the documents of the selected building with download links.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]library.Document, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	docs, err := s.store.ListDocuments(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		url, err := s.files.URL(ctx, docs[i].ObjectKey)
		if err != nil {
			s.log.WithError(err).WithField("document_id", docs[i].ID).Warn("could not sign document url")
			continue
		}
		docs[i].URL = url
	}
	if docs == nil {
		docs = []library.Document{}
	}
	return docs, nil
}

func isPDF(in UploadInput) bool {
	ct := strings.ToLower(strings.TrimSpace(in.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct != "" && ct != pdfContentType && ct != "application/octet-stream" {
		return false
	}
	return strings.EqualFold(path.Ext(in.FileName), ".pdf")
}

// countingReader fails once more than limit bytes have been read.
type countingReader struct {
	r     io.Reader
	n     int64
	limit int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.limit {
		return n, errTooLarge
	}
	return n, err
}

var errTooLarge = fmt.Errorf("file exceeds %d bytes", MaxFileSize)

// Upload stores a PDF and registers it in the selected building.
func (s *Service) Upload(ctx context.Context, actor user.Actor, in UploadInput, r io.Reader) (library.Document, error) {
	if !actor.User.IsAdmin() {
		return library.Document{}, apperrors.Forbidden("only administrators can upload documents")
	}
	if !actor.HasBuilding() {
		return library.Document{}, apperrors.BuildingRequired()
	}
	switch {
	case strings.TrimSpace(in.Name) == "":
		return library.Document{}, apperrors.Validation("name is required")
	case strings.TrimSpace(in.Category) == "":
		return library.Document{}, apperrors.Validation("category is required")
	case in.Size > MaxFileSize:
		return library.Document{}, apperrors.Validation("file must not exceed 30 MB")
	case !isPDF(in):
		return library.Document{}, apperrors.Validation("only PDF files are allowed")
	}

	key := filestore.ObjectKey(fmt.Sprintf("library/%d", actor.BuildingID), in.FileName)
	body := &countingReader{r: r, limit: MaxFileSize}
	if err := s.files.Put(ctx, key, pdfContentType, body); err != nil {
		if body.n > MaxFileSize {
			_ = s.files.Delete(ctx, key)
			return library.Document{}, apperrors.Validation("file must not exceed 30 MB")
		}
		return library.Document{}, apperrors.Internal("could not store document", err)
	}

	doc, err := s.store.CreateDocument(ctx, library.Document{
		BuildingID: actor.BuildingID,
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		FileName:   path.Base(in.FileName),
		ObjectKey:  key,
		Size:       body.n,
		UploadedBy: actor.ID(),
	})
	if err != nil {
		return library.Document{}, err
	}
	if url, err := s.files.URL(ctx, key); err == nil {
		doc.URL = url
	}
	s.log.WithField("document_id", doc.ID).
		WithField("building_id", doc.BuildingID).
		WithField("size", doc.Size).
		Info("library document uploaded")
	return doc, nil
}

// Delete removes the document record. The stored object is kept.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if !actor.User.IsAdmin() {
		return apperrors.Forbidden("only administrators can delete documents")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return apperrors.FromStore(err, "document not found")
	}
	if doc.BuildingID != actor.BuildingID {
		return apperrors.NotFound("document not found")
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.log.WithField("document_id", id).WithField("key", doc.ObjectKey).Info("library document deleted")
	return nil
}
