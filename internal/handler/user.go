package handler

import (
	"strconv"

	"order-workflow/internal/apperror"
	"order-workflow/internal/handler/response"
	"order-workflow/internal/middleware"
	"order-workflow/internal/model"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
)

// UserHandler はユーザー管理のHTTPハンドラー
type UserHandler struct {
	userService  service.UserService
	orderService service.OrderService
}

// NewUserHandler は新しいユーザーハンドラーを作成
func NewUserHandler(userService service.UserService, orderService service.OrderService) *UserHandler {
	return &UserHandler{userService: userService, orderService: orderService}
}

// ListUsers はユーザー一覧を取得
func (h *UserHandler) ListUsers(c *gin.Context) {
	filters := model.UserFilters{Role: model.Role(c.Query("rol"))}
	if filters.Role != "" && !filters.Role.Valid() {
		response.Error(c, apperror.Newf(apperror.KindValidation, "rol %q no existe", filters.Role))
		return
	}
	if active := c.Query("activo"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			response.Error(c, apperror.Validation("activo debe ser true o false"))
			return
		}
		filters.Active = &v
	}

	users, err := h.userService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

// GetUser は指定されたユーザーを取得
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// CreateUser は新しいユーザーを作成
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	user, err := h.userService.CreateUser(c.Request.Context(), &req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// UpdateUser はユーザーを部分更新
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// ListCarriers は割当可能な運送担当者を取得
func (h *UserHandler) ListCarriers(c *gin.Context) {
	carriers, err := h.orderService.ListCarriers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, carriers)
}
