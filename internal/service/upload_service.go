package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"
	"societyledger/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadFile is one incoming file, opened lazily so nothing is read before validation passes
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type UploadResponse struct {
	Files []model.BillAttachment `json:"files"`
}

type UploadService interface {
	Upload(ctx context.Context, p auth.Principal, files []UploadFile) (UploadResponse, error)
}

type uploadService struct {
	store    storage.BlobStore
	maxSize  int64
	maxFiles int
	log      *zap.Logger
}

func NewUploadService(store storage.BlobStore, maxSize int64, maxFiles int, log *zap.Logger) UploadService {
	return &uploadService{store: store, maxSize: maxSize, maxFiles: maxFiles, log: log.Named("uploads")}
}

func (s *uploadService) Upload(ctx context.Context, p auth.Principal, files []UploadFile) (UploadResponse, error) {
	if err := s.validate(files); err != nil {
		return UploadResponse{}, err
	}

	uploaded := make([]model.BillAttachment, 0, len(files))
	for _, f := range files {
		url, err := s.put(ctx, f)
		if err != nil {
			s.log.Warn("upload failed", zap.String("file", f.Name), zap.String("user_id", p.ID.String()), zap.Error(err))
			return UploadResponse{}, apperror.Upstream("file upload failed", err)
		}
		uploaded = append(uploaded, model.BillAttachment{
			FileName: filepath.Base(f.Name),
			FileURL:  url,
			FileSize: f.Size,
		})
	}
	return UploadResponse{Files: uploaded}, nil
}

func (s *uploadService) validate(files []UploadFile) error {
	if len(files) == 0 {
		return apperror.Validation("no files uploaded", apperror.FieldError{Field: "files", Message: "at least one file is required"})
	}
	if len(files) > s.maxFiles {
		return apperror.Validation("too many files",
			apperror.FieldError{Field: "files", Message: fmt.Sprintf("at most %d files per upload", s.maxFiles)})
	}

	var details []apperror.FieldError
	for i := range files {
		f := &files[i]
		field := fmt.Sprintf("files[%d]", i)
		if f.Size > s.maxSize {
			details = append(details, apperror.FieldError{Field: field, Message: fmt.Sprintf("%s exceeds %d bytes", f.Name, s.maxSize)})
			continue
		}
		f.ContentType = contentTypeOf(f)
		if !allowedContentType(f.ContentType) {
			details = append(details, apperror.FieldError{Field: field, Message: fmt.Sprintf("%s: only images and PDF files are allowed", f.Name)})
		}
	}
	if len(details) > 0 {
		return apperror.Validation("invalid files", details...)
	}
	return nil
}

func (s *uploadService) put(ctx context.Context, f UploadFile) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()

	key := fmt.Sprintf("bills/%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), strings.ToLower(filepath.Ext(f.Name)))
	return s.store.Put(ctx, key, f.ContentType, body, f.Size)
}

func contentTypeOf(f *UploadFile) string {
	ct := f.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

func allowedContentType(ct string) bool {
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
