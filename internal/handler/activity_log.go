package handler

import (
	"strconv"

	"order-workflow/internal/apperror"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
)

// ActivityLogHandler は操作ログのHTTPハンドラー
type ActivityLogHandler struct {
	activityService service.ActivityLogService
}

func NewActivityLogHandler(activityService service.ActivityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{activityService: activityService}
}

// ListLog は操作ログを新しい順に返す（tipo=estado|usuario）
func (h *ActivityLogHandler) ListLog(c *gin.Context) {
	filter := repository.LogFilter{Category: model.LogCategory(c.Query("tipo"))}
	switch filter.Category {
	case "", model.LogCategoryState, model.LogCategoryUser:
	default:
		response.Error(c, apperror.Newf(apperror.KindValidation, "tipo %q no existe", filter.Category))
		return
	}
	if limit := c.Query("limit"); limit != "" {
		v, err := strconv.Atoi(limit)
		if err != nil || v <= 0 {
			response.Error(c, apperror.Validation("limit debe ser un número positivo"))
			return
		}
		filter.Limit = v
	}

	entries, err := h.activityService.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}
