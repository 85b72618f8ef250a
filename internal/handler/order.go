package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"order-workflow/internal/apperror"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/middleware"
	"order-workflow/internal/model"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderHandler は注文のHTTPハンドラー
type OrderHandler struct {
	orderService  service.OrderService
	exportService service.ExportService
}

// NewOrderHandler は新しい注文ハンドラーを作成
func NewOrderHandler(orderService service.OrderService, exportService service.ExportService) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		exportService: exportService,
	}
}

// ListOrders は注文一覧を取得（completado=true で履歴）
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	orders, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, orders)
}

// ListHistory は完了した注文の履歴を取得
func (h *OrderHandler) ListHistory(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.orderService.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, records)
}

// GetOrder は指定された注文を取得
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// CreateOrder は新しい注文を作成
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var draft model.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	order, err := h.orderService.Create(c.Request.Context(), draft, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// UpdateOrder は準備中の注文を部分更新
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var patch model.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	order, err := h.orderService.Update(c.Request.Context(), c.Param("id"), patch, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// AdvanceOrder は注文を次の段階へ進める
func (h *OrderHandler) AdvanceOrder(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	result, err := h.orderService.Advance(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AssignCarrier は運送担当者を割り当てる
func (h *OrderHandler) AssignCarrier(c *gin.Context) {
	var req model.AssignCarrierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	order, err := h.orderService.AssignCarrier(c.Request.Context(), c.Param("id"), req.CarrierID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// UpdateChecklist は積込チェックリストを更新
func (h *OrderHandler) UpdateChecklist(c *gin.Context) {
	var checklist model.Checklist
	if err := c.ShouldBindJSON(&checklist); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	order, err := h.orderService.UpdateChecklist(c.Request.Context(), c.Param("id"), checklist, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, order)
}

// FinalizeOrder は最終段階の注文を履歴へ移す
func (h *OrderHandler) FinalizeOrder(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	record, err := h.orderService.Finalize(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, record)
}

// DeleteOrder は準備中の注文を削除
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	if err := h.orderService.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Pedido eliminado")
}

// ExportOrder は注文をCSVまたはExcelで出力
func (h *OrderHandler) ExportOrder(c *gin.Context) {
	file, err := h.exportService.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func parseOrderFilter(c *gin.Context) (model.OrderFilter, error) {
	filter := model.OrderFilter{
		Priority: model.Priority(strings.TrimSpace(c.Query("prioridad"))),
		Search:   strings.TrimSpace(c.Query("q")),
	}

	if completed := c.Query("completado"); completed != "" {
		v, err := strconv.ParseBool(completed)
		if err != nil {
			return filter, apperror.Validation("completado debe ser true o false")
		}
		filter.Completed = v
	}

	if stage := c.Query("estado"); stage != "" && stage != "todos" {
		v, err := strconv.Atoi(stage)
		if err != nil {
			return filter, apperror.Validation("estado debe ser un número")
		}
		filter.Stage = &v
	}

	return filter, nil
}
