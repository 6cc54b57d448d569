package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/emrgen/wikinote/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server is the JSON boundary of the wiki.
type Server struct {
	app     *app.App
	domain  string
	origins []string
}

// NewServer creates a new server
func NewServer(app *app.App, domain string, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{app: app, domain: domain, origins: origins}
}

// Handler returns the routes of the API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestTime())
	r.Use(Tenant(s.domain))
	r.Use(Requester(s.app.Identity))

	h := &handlers{service: s.app.Service, users: s.app.Users}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pages/*", h.getPage)
		r.Post("/pages/*", h.createPage)
		r.Put("/pages/*", h.editPage)
		r.Delete("/pages/*", h.deletePage)
		r.Post("/move", h.movePage)
		r.Put("/access/*", h.setAccess)
		r.Get("/history/*", h.history)
		r.Get("/revisions/{id}/*", h.revision)
		r.Get("/source/*", h.latestRevision)
		r.Get("/tree/*", h.tree)
		r.Get("/files/*", h.files)
		r.Post("/files/*", h.attachFile)
		r.Delete("/files/*", h.detachFile)
		r.Get("/file/*", h.openFile)
		r.Put("/subscriptions/*", h.subscribe)
		r.Get("/subscriptions", h.subscription)
		r.Get("/search", h.search)
		r.Post("/reindex", h.reindex)
		r.Post("/users", h.register)
		r.Get("/users", h.listUsers)
		r.Post("/users/{id}/approve", h.approveUser)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderTenant},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	restServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Info("starting rest server on: ", addr)
		if err := restServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logrus.Infof("rest server stopped")
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return restServer.Shutdown(shutdown)
	})

	return g.Wait()
}
