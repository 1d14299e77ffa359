package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"societyledger/internal/apperror"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	uploadService service.UploadService
	maxBody       int64
}

// NewUploadHandler caps the multipart body at maxBody bytes
func NewUploadHandler(uploadService service.UploadService, maxBody int64) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, maxBody: maxBody}
}

func (h *UploadHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/upload", h.Upload)
}

// Upload stores bill attachments and returns their URLs
// @Summary      Upload attachments
// @Description  Multipart field "files". Images and PDF only.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        files  formData  file  true  "Files"
// @Success      200    {object}  response.Response{data=service.UploadResponse}
// @Failure      400    {object}  response.Response
// @Failure      502    {object}  response.Response
// @Router       /api/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperror.Validation("invalid multipart body",
			apperror.FieldError{Field: "files", Message: err.Error()}))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	headers := form.File["files"]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFileFrom(fh))
	}

	res, err := h.uploadService.Upload(c.Request.Context(), p, files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

func uploadFileFrom(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
