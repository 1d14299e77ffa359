package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"societyledger/internal/apperror"
	"societyledger/internal/auth"
	"societyledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockBlobStore struct {
	mock.Mock
}

func (m *mockBlobStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	args := m.Called(ctx, key, contentType, body, size)
	return args.String(0), args.Error(1)
}

func uploadFile(name, contentType, body string) UploadFile {
	return UploadFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestUploadService_Upload(t *testing.T) {
	p := auth.Principal{ID: uuid.New(), Role: model.RoleTreasurer}

	t.Run("stores each file", func(t *testing.T) {
		store := &mockBlobStore{}
		store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "bills/") && strings.HasSuffix(key, ".pdf")
		}), "application/pdf", mock.Anything, int64(8)).Return("http://cdn/bills/x.pdf", nil).Once()
		store.On("Put", mock.Anything, mock.Anything, "image/png", mock.Anything, int64(3)).Return("http://cdn/bills/y.png", nil).Once()

		svc := NewUploadService(store, 1024, 5, zap.NewNop())
		resp, err := svc.Upload(context.Background(), p, []UploadFile{
			uploadFile("invoice.PDF", "application/octet-stream", "%PDF-1.4"),
			uploadFile("receipt.png", "image/png", "png"),
		})
		require.NoError(t, err)
		require.Len(t, resp.Files, 2)
		assert.Equal(t, model.BillAttachment{FileName: "invoice.PDF", FileURL: "http://cdn/bills/x.pdf", FileSize: 8}, resp.Files[0])
		assert.Equal(t, "http://cdn/bills/y.png", resp.Files[1].FileURL)
		store.AssertExpectations(t)
	})

	t.Run("rejects before storing anything", func(t *testing.T) {
		store := &mockBlobStore{}
		svc := NewUploadService(store, 4, 2, zap.NewNop())

		_, err := svc.Upload(context.Background(), p, nil)
		assert.ErrorIs(t, err, apperror.ErrValidation)

		_, err = svc.Upload(context.Background(), p, []UploadFile{
			uploadFile("a.png", "image/png", "1"), uploadFile("b.png", "image/png", "1"), uploadFile("c.png", "image/png", "1"),
		})
		assert.ErrorIs(t, err, apperror.ErrValidation)

		_, err = svc.Upload(context.Background(), p, []UploadFile{
			uploadFile("ok.png", "image/png", "1"),
			uploadFile("big.pdf", "application/pdf", "too large"),
			uploadFile("run.exe", "", "MZ"),
		})
		var appErr *apperror.Error
		require.ErrorAs(t, err, &appErr)
		assert.Len(t, appErr.Details, 2)

		store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure is upstream", func(t *testing.T) {
		store := &mockBlobStore{}
		store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket gone"))
		svc := NewUploadService(store, 1024, 5, zap.NewNop())

		_, err := svc.Upload(context.Background(), p, []UploadFile{uploadFile("a.jpg", "image/jpeg", "jpg")})
		assert.ErrorIs(t, err, apperror.ErrUpstream)
	})
}
