// Package apitest runs the full pedidos API on an in-memory store for client-side tests.
package apitest

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"order-workflow/internal/auth"
	"order-workflow/internal/authz"
	"order-workflow/internal/handler"
	"order-workflow/internal/infrastructure"
	"order-workflow/internal/model"
	"order-workflow/internal/repository"
	"order-workflow/internal/service"
	"order-workflow/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Password is the password of every seeded user.
const Password = "secreto1"

// TokenTTL is the lifetime of tokens issued by the test server.
const TokenTTL = time.Hour

// Server is a running API with one active user per role, reachable as <role>@pedidos.local.
type Server struct {
	*httptest.Server

	Store  *repository.MemoryStore
	Users  service.UserService
	Orders service.OrderService

	mu  sync.Mutex
	now time.Time
	ids map[model.Role]string
}

// New starts a server and closes it when the test ends.
func New(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		ids: make(map[model.Role]string),
	}
	s.Store = repository.NewMemoryStore()
	engine := workflow.NewEngine(workflow.WithClock(s.Now))
	logger := zap.NewNop()
	publisher := infrastructure.NewLogPublisher(logger)
	documents, err := infrastructure.NewLocalDocumentStore(t.TempDir())
	require.NoError(t, err)

	s.Users = service.NewUserService(s.Store, engine)
	s.Orders = service.NewOrderService(s.Store, engine, publisher, logger)
	activity := service.NewActivityLogService(s.Store)
	authService := auth.NewService(auth.Config{Secret: []byte("apitest-secret"), TTL: TokenTTL},
		s.Users, activity, infrastructure.NewMemoryTokenRevoker(), engine)

	system := workflow.Actor{ID: "system", Name: "Sistema", Role: model.RoleAdmin}
	for _, role := range model.Roles {
		u, err := s.Users.CreateUser(context.Background(), &model.CreateUserRequest{
			Email:    Email(role),
			Name:     strings.ToUpper(string(role)),
			Role:     role,
			Password: Password,
		}, system)
		require.NoError(t, err)
		s.ids[role] = u.ID
	}

	router := handler.NewRouter(handler.Dependencies{
		Auth:       authService,
		Authorizer: authz.MustNew(),
		Orders:     s.Orders,
		Products:   service.NewProductService(s.Store, engine),
		Users:      s.Users,
		Activity:   activity,
		Documents:  service.NewDocumentService(s.Store, documents, engine, publisher, logger),
		Export:     service.NewExportService(s.Store),
		Logger:     logger,
	})
	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Email returns the login of the seeded user with role.
func Email(role model.Role) string {
	return string(role) + "@pedidos.local"
}

// UserID returns the id of the seeded user with role.
func (s *Server) UserID(role model.Role) string {
	return s.ids[role]
}

// Actor returns the seeded user with role as a workflow actor.
func (s *Server) Actor(role model.Role) workflow.Actor {
	return workflow.Actor{ID: s.ids[role], Name: strings.ToUpper(string(role)), Role: role}
}

// Now is the server clock.
func (s *Server) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the server clock forward by d.
func (s *Server) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}
