package server

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Tomlord1122/family-todo/internal/config"
	"github.com/Tomlord1122/family-todo/internal/service"
	"github.com/Tomlord1122/family-todo/internal/session"
)

// HealthChecker reports datastore health for GET /health.
type HealthChecker interface {
	Health() map[string]string
}

// Sessions issues and resolves session tokens.
type Sessions interface {
	session.Resolver
	Issue(email string, accountID uint) (string, time.Time, error)
	SetCookie(w http.ResponseWriter, token string, expires time.Time)
	ClearCookie(w http.ResponseWriter)
}

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Health   HealthChecker
	Todos    service.TodoService
	Accounts service.AccountService
	Children service.ChildService
	Assets   service.AssetService
	Sessions Sessions
	// OAuth is nil when Google sign-in is not configured.
	OAuth OAuthProvider
}

type Server struct {
	cfg      config.Config
	health   HealthChecker
	todos    service.TodoService
	accounts service.AccountService
	children service.ChildService
	assets   service.AssetService
	sessions Sessions
	oauth    OAuthProvider
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		health:   deps.Health,
		todos:    deps.Todos,
		accounts: deps.Accounts,
		children: deps.Children,
		assets:   deps.Assets,
		sessions: deps.Sessions,
		oauth:    deps.OAuth,
	}
}

// NewServer builds the process's *http.Server with tracing around every route.
func NewServer(cfg config.Config, deps Deps) *http.Server {
	appServer := New(cfg, deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(appServer.RegisterRoutes(), "family-todo"),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
