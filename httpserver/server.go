package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	// DrainDuration is the time to wait after marking server not ready
	// before shutting down, allowing load balancers to detect the change.
	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv     *http.Server
	handler *Handler
}

func New(cfg *HTTPServerConfig, handler *Handler) (srv *Server, err error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	srv = &Server{
		cfg:     cfg,
		log:     cfg.Log,
		srv:     nil,
		handler: handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()
	h := srv.handler

	mux.Route("/api", func(r chi.Router) {
		r.Use(srv.httpLogger)

		r.Post("/login", h.HandleLogin)
		r.Get("/storage", h.HandleStorageInfo)

		r.Get("/admin/config", h.HandleGetAdminConfig)
		r.Put("/admin/config", h.HandlePutAdminConfig)
		r.Post("/admin/clear", h.HandleClearAllData)

		r.Get("/users", h.HandleListUsers)
		r.Post("/users", h.HandleRegisterUser)
		r.Route("/users/{user}", func(r chi.Router) {
			r.Get("/", h.HandleUserExists)
			r.Delete("/", h.HandleDeleteUser)
			r.Put("/password", h.HandleChangePassword)

			r.Get("/playrecords", h.HandleListPlayRecords)
			r.Get("/playrecords/{source}/{id}", h.HandleGetPlayRecord)
			r.Put("/playrecords/{source}/{id}", h.HandlePutPlayRecord)
			r.Delete("/playrecords/{source}/{id}", h.HandleDeletePlayRecord)

			r.Get("/favorites", h.HandleListFavorites)
			r.Get("/favorites/{source}/{id}", h.HandleGetFavorite)
			r.Get("/favorites/{source}/{id}/status", h.HandleFavoriteStatus)
			r.Put("/favorites/{source}/{id}", h.HandlePutFavorite)
			r.Delete("/favorites/{source}/{id}", h.HandleDeleteFavorite)

			r.Get("/skipconfigs", h.HandleListSkipConfigs)
			r.Get("/skipconfigs/{source}/{id}", h.HandleGetSkipConfig)
			r.Put("/skipconfigs/{source}/{id}", h.HandlePutSkipConfig)
			r.Delete("/skipconfigs/{source}/{id}", h.HandleDeleteSkipConfig)

			r.Get("/searchhistory", h.HandleGetSearchHistory)
			r.Post("/searchhistory", h.HandleAddSearchHistory)
			r.Delete("/searchhistory", h.HandleDeleteSearchHistory)
		})
	})

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Swap(false) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")

	// Load balancers need DrainDuration to notice; don't hold the request that long
	go func() {
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if srv.isReady.Swap(true) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.log.Info("Server marked as ready")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// Handler returns the routed HTTP handler, for embedding and tests.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}
}
