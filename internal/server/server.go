// Package server exposes the room coordinator over HTTP: room creation,
// the WebSocket endpoint, invite QR codes, and metrics.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/damione1/poker-rooms/internal/checkpoint"
	"github.com/damione1/poker-rooms/internal/config"
	"github.com/damione1/poker-rooms/internal/metrics"
	"github.com/damione1/poker-rooms/internal/room"
	"github.com/damione1/poker-rooms/internal/security"
)

type Server struct {
	cfg     *config.Config
	rooms   *room.Manager
	metrics *metrics.Metrics
	limiter *security.RateLimiter
}

func New(cfg *config.Config, store checkpoint.Store, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		rooms:   room.NewManager(store, m),
		metrics: m,
		limiter: security.NewRateLimiter(config.MaxMessagesPerSecond, config.RateLimitWindow),
	}
}

// Rooms exposes the manager, mainly for tests.
func (s *Server) Rooms() *room.Manager {
	return s.rooms
}

func (s *Server) Router() *httprouter.Router {
	router := httprouter.New()

	router.POST("/api/rooms", s.handleCreateRoom)
	router.GET("/api/rooms/:room/qr", s.handleRoomQR)
	router.GET("/api/metrics", s.handleMetrics)
	router.GET("/api/health", s.handleHealth)
	router.GET("/ws/:room", s.handleWebSocket)

	if s.cfg.Profile {
		router.Handler(http.MethodGet, "/pprof/allocs", pprof.Handler("allocs"))
		router.Handler(http.MethodGet, "/pprof/block", pprof.Handler("block"))
		router.Handler(http.MethodGet, "/pprof/goroutine", pprof.Handler("goroutine"))
		router.Handler(http.MethodGet, "/pprof/heap", pprof.Handler("heap"))
		router.Handler(http.MethodGet, "/pprof/mutex", pprof.Handler("mutex"))
		router.Handler(http.MethodGet, "/pprof/threadcreate", pprof.Handler("threadcreate"))
		router.HandlerFunc(http.MethodGet, "/pprof/cmdline", pprof.Cmdline)
		router.HandlerFunc(http.MethodGet, "/pprof/profile", pprof.Profile)
		router.HandlerFunc(http.MethodGet, "/pprof/symbol", pprof.Symbol)
		router.HandlerFunc(http.MethodGet, "/pprof/trace", pprof.Trace)
	}

	return router
}

// Run wires the checkpoint store, manager and HTTP server together and
// serves until interrupted.
func Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store checkpoint.Store
	if cfg.DataDir != "" {
		sqlStore, err := checkpoint.OpenSQLStore(filepath.Join(cfg.DataDir, "checkpoints.db"))
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		store = checkpoint.NewMemStore()
	}

	m := metrics.New()
	srv := New(cfg, store, m)
	srv.rooms.StartJanitor(ctx, time.Minute, cfg.HibernateAfter)

	httpSrv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)),
		Handler: srv.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s://%s", cfg.Scheme(), httpSrv.Addr)
		if cfg.TLSCert != "" {
			errc <- httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			errc <- httpSrv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (s *Server) logf(format string, args ...any) {
	if !s.cfg.Verbose {
		return
	}
	log.Printf(format, args...)
}
