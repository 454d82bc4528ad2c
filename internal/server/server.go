package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/PageIndexAPI/internal/adapter/utils"
	"github.com/akolanti/PageIndexAPI/internal/config"
	"github.com/akolanti/PageIndexAPI/internal/handlers"
	"github.com/akolanti/PageIndexAPI/internal/middleware"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

type Server struct {
	http   *http.Server
	logger *logger_i.Logger
}

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// NewRouter mounts every API route. Liveness and health stay outside auth so
// probes work without a token. mcpHandler may be nil.
func NewRouter(h *handlers.Handler, mw *middleware.Middleware, mcpHandler http.Handler) http.Handler {
	r := utils.NewRouter()

	r.Router.Get("/", handlers.GetHandler)
	r.Router.Get("/health", h.HealthHandler)

	r.Router.Post("/ingest", mw.Wrap(h.PostIngestHandler))
	r.Router.Post("/query", mw.Wrap(h.QueryHandler))
	r.Router.Get("/status/{id}", mw.Wrap(h.GetStatusHandler))

	r.Router.Get("/documents", mw.Wrap(h.ListDocumentsHandler))
	r.Router.Post("/documents/purge", mw.Wrap(h.PurgeHandler))
	r.Router.Get("/documents/{id}/tree", mw.Wrap(h.GetTreeHandler))
	r.Router.Delete("/documents/{id}", mw.Wrap(h.DeleteDocumentHandler))
	r.Router.Get("/page/{doc_id}/{page_num}", mw.Wrap(h.GetPageHandler))

	if mcpHandler != nil {
		r.Router.Handle("/mcp", mw.WrapHandler(mcpHandler))
	}
	return r.Router
}

func CreateServer(listenAddr string, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         listenAddr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: logger_i.NewLogger("server"),
	}
}

func (s *Server) Run() {
	s.logger.Info("server_listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("server_crashed", "error", err, "address", s.http.Addr)
	}
}

func (s *Server) ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	s.logger.Info("server_shutting_down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		s.http.SetKeepAlivesEnabled(false)

		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("graceful_shutdown_failed", "error", err)
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server_stopped_gracefully")
	case <-ctx.Done():
		s.logger.Error("server_forced_shutdown")
	}
	close(shutdownParams.StopExecution)
}
