package handler

import (
	"fmt"
	"io"
	"net/http"

	"order-workflow/internal/apperror"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/middleware"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentHandler は注文PDFのHTTPハンドラー
type DocumentHandler struct {
	documentService service.DocumentService
	logger          *zap.Logger
}

// NewDocumentHandler は新しいドキュメントハンドラーを作成
func NewDocumentHandler(documentService service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, logger: logger}
}

// Upload は multipart の "file" フィールドでPDFを受け取る
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxDocumentSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, apperror.Validation("No se recibió ningún archivo"))
		return
	}
	if header.Size > service.MaxDocumentSize {
		response.Error(c, apperror.Validation("El archivo supera el tamaño máximo de 10 MB"))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	actor, _ := middleware.ActorFromContext(c)
	order, err := h.documentService.Upload(c.Request.Context(), c.Param("id"), header.Filename, file, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// Download はPDFを返す
func (h *DocumentHandler) Download(c *gin.Context) {
	rc, filename, err := h.documentService.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("document download interrupted", zap.String("order_id", c.Param("id")), zap.Error(err))
	}
}
