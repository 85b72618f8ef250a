package handler

import (
	"net/http"

	"order-workflow/internal/auth"
	"order-workflow/internal/authz"
	"order-workflow/internal/middleware"
	"order-workflow/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies はルーターが必要とするサービス群
type Dependencies struct {
	Auth        *auth.Service
	Microsoft   *auth.MicrosoftOAuth
	Authorizer  *authz.Authorizer
	Orders      service.OrderService
	Products    service.ProductService
	Users       service.UserService
	Activity    service.ActivityLogService
	Documents   service.DocumentService
	Export      service.ExportService
	Logger      *zap.Logger
	FrontendURL string
	Production  bool
}

// NewRouter はAPIのルーティングを構築する
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = service.MaxDocumentSize
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(deps.FrontendURL, deps.Production))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(deps.Auth, deps.Microsoft, deps.FrontendURL, deps.Logger)
	orderHandler := NewOrderHandler(deps.Orders, deps.Export)
	itemHandler := NewItemHandler(deps.Products)
	documentHandler := NewDocumentHandler(deps.Documents, deps.Logger)
	userHandler := NewUserHandler(deps.Users, deps.Orders)
	logHandler := NewActivityLogHandler(deps.Activity)

	perm := func(resource, action string) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Authorizer, deps.Logger, resource, action)
	}

	api := r.Group("/api")
	{
		// 認証不要
		api.GET("/login", authHandler.MicrosoftLogin)
		api.GET("/callback", authHandler.Callback)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/verify-token", authHandler.VerifyToken)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Auth))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		orders := protected.Group("/pedidos")
		{
			orders.GET("", perm(authz.ResourceOrders, authz.ActionRead), orderHandler.ListOrders)
			orders.POST("", perm(authz.ResourceOrders, authz.ActionCreate), orderHandler.CreateOrder)
			orders.GET("/:id", perm(authz.ResourceOrders, authz.ActionRead), orderHandler.GetOrder)
			orders.PUT("/:id", perm(authz.ResourceOrders, authz.ActionWrite), orderHandler.UpdateOrder)
			orders.DELETE("/:id", perm(authz.ResourceOrders, authz.ActionDelete), orderHandler.DeleteOrder)
			orders.PUT("/:id/avanzar", perm(authz.ResourceOrders, authz.ActionAdvance), orderHandler.AdvanceOrder)
			orders.PUT("/:id/asignar", perm(authz.ResourceOrders, authz.ActionAssign), orderHandler.AssignCarrier)
			orders.PUT("/:id/checklist", perm(authz.ResourceOrders, authz.ActionChecklist), orderHandler.UpdateChecklist)
			orders.PUT("/:id/finalizar", perm(authz.ResourceOrders, authz.ActionFinalize), orderHandler.FinalizeOrder)
			orders.GET("/:id/csv", perm(authz.ResourceOrders, authz.ActionExport), orderHandler.ExportOrder)

			orders.GET("/:id/productos", perm(authz.ResourceItems, authz.ActionRead), itemHandler.ListItems)
			orders.POST("/:id/productos", perm(authz.ResourceItems, authz.ActionWrite), itemHandler.AddItem)
			orders.PUT("/:id/productos/:pid", perm(authz.ResourceItems, authz.ActionWrite), itemHandler.UpdatePreparedQty)
			orders.DELETE("/:id/productos/:pid", perm(authz.ResourceItems, authz.ActionDelete), itemHandler.DeleteItem)
		}

		protected.GET("/historial", perm(authz.ResourceHistory, authz.ActionRead), orderHandler.ListHistory)

		documents := protected.Group("/archivos/pedidos")
		{
			documents.POST("/:id/pdf", perm(authz.ResourceDocuments, authz.ActionWrite), documentHandler.Upload)
			documents.GET("/:id/pdf", perm(authz.ResourceDocuments, authz.ActionRead), documentHandler.Download)
		}

		users := protected.Group("/usuarios")
		{
			users.GET("", perm(authz.ResourceUsers, authz.ActionRead), userHandler.ListUsers)
			users.POST("", perm(authz.ResourceUsers, authz.ActionCreate), userHandler.CreateUser)
			users.GET("/transportistas", perm(authz.ResourceCarriers, authz.ActionRead), userHandler.ListCarriers)
			users.GET("/log", perm(authz.ResourceActivity, authz.ActionRead), logHandler.ListLog)
			users.GET("/:id", perm(authz.ResourceUsers, authz.ActionRead), userHandler.GetUser)
			users.PUT("/:id", perm(authz.ResourceUsers, authz.ActionWrite), userHandler.UpdateUser)
		}
	}

	return r
}
