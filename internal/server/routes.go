package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  log.Default().StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.HelloWorldHandler)

	r.Get("/health", s.healthHandler)

	r.Post("/register", s.registerHandler)
	r.Post("/login", s.loginHandler)
	r.Post("/logout", s.logoutHandler)
	r.Get("/auth/google/start", s.oauthStartHandler)
	r.Get("/auth/google/callback", s.oauthCallbackHandler)
	r.Post("/users/lookup", s.lookupUserHandler)

	r.Get("/images/{id}", s.fetchAssetHandler(true))
	r.Get("/files/{id}", s.fetchAssetHandler(false))

	r.Group(func(r chi.Router) {
		r.Use(s.requirePrincipal)

		r.Route("/todos", func(r chi.Router) {
			r.Post("/", s.createTodoHandler)
			r.Get("/", s.listTodosHandler)
			r.Get("/{id}", s.getTodoHandler)
			r.Put("/{id}", s.updateTodoHandler)
			r.Delete("/{id}", s.deleteTodoHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Put("/images/{id}", s.updateUserImageHandler)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getProfileHandler)
				r.Put("/", s.updateProfileHandler)

				r.Route("/children", func(r chi.Router) {
					r.Post("/", s.createChildHandler)
					r.Get("/", s.listChildrenHandler)
					r.Get("/{childID}", s.getChildHandler)
					r.Put("/{childID}", s.updateChildHandler)
					r.Delete("/{childID}", s.deleteChildHandler)
					r.Post("/{childID}/parents", s.linkParentHandler)
				})
			})
		})
	})

	return r
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hello World from Family Todo!"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.health.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}
