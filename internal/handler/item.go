package handler

import (
	"order-workflow/internal/handler/response"
	"order-workflow/internal/middleware"
	"order-workflow/internal/model"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
)

// ItemHandler は注文明細のHTTPハンドラー
type ItemHandler struct {
	productService service.ProductService
}

// NewItemHandler は新しい明細ハンドラーを作成
func NewItemHandler(productService service.ProductService) *ItemHandler {
	return &ItemHandler{productService: productService}
}

// ListItems は注文の明細一覧を取得
func (h *ItemHandler) ListItems(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, products)
}

// AddItem は明細を追加
func (h *ItemHandler) AddItem(c *gin.Context) {
	var draft model.ProductDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	product, err := h.productService.AddProduct(c.Request.Context(), c.Param("id"), draft, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}

// UpdatePreparedQty は準備数量を更新
func (h *ItemHandler) UpdatePreparedQty(c *gin.Context) {
	var req model.PreparedQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	product, err := h.productService.SetPreparedQty(c.Request.Context(), c.Param("id"), c.Param("pid"), req.PreparedQty, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, product)
}

// DeleteItem は明細を削除
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id"), c.Param("pid"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Producto eliminado")
}
