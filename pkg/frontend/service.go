package frontend

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/config"
	"github.com/GoogleCloudPlatform/pgadapter-go/pkg/observability"
)

// Server is PGAdapter's accept loop: it listens on TCP and/or a Unix-domain
// socket, hands every accepted connection to its own Session goroutine, and
// keeps a (connectionId, secret)-keyed registry so a bootstrap CancelRequest
// on any connection can reach the Session it targets.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	nextID uint32

	mu       sync.Mutex
	sessions map[uint32]*Session

	wg sync.WaitGroup
}

// NewServer builds a Server ready to Listen. metrics may be nil when the
// Prometheus endpoint is disabled.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uint32]*Session),
	}
}

// Listen opens every listener the configuration names (TCP port, Unix
// socket directory, or both) and serves connections until Shutdown is
// called or a listener fails.
func (srv *Server) Listen() error {
	var listeners []net.Listener

	if srv.cfg.TCPPort != 0 {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", srv.cfg.TCPPort))
		if err != nil {
			return fmt.Errorf("listening on tcp port %d: %w", srv.cfg.TCPPort, err)
		}
		listeners = append(listeners, ln)
		srv.logger.Info("listening", "addr", ln.Addr().String())
	}
	if srv.cfg.UnixSocketDir != "" {
		path := filepath.Join(srv.cfg.UnixSocketDir, fmt.Sprintf(".s.PGSQL.%d", srv.cfg.TCPPort))
		os.Remove(path)
		ln, err := net.Listen("unix", path)
		if err != nil {
			for _, l := range listeners {
				l.Close()
			}
			return fmt.Errorf("listening on unix socket %s: %w", path, err)
		}
		listeners = append(listeners, ln)
		srv.logger.Info("listening", "addr", path)
	}
	if len(listeners) == 0 {
		return errors.New("frontend: no listener configured")
	}

	errCh := make(chan error, len(listeners))
	for _, ln := range listeners {
		go func(ln net.Listener) {
			errCh <- srv.accept(ln)
		}(ln)
	}

	var firstErr error
	select {
	case <-srv.ctx.Done():
		firstErr = nil
	case err := <-errCh:
		firstErr = err
	}

	srv.cancel()
	for _, ln := range listeners {
		ln.Close()
	}
	srv.wg.Wait()
	return firstErr
}

// accept runs one listener's accept loop, handing each connection to its
// own Session goroutine.
func (srv *Server) accept(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if srv.ctx.Err() != nil {
				return nil
			}
			return err
		}
		srv.wg.Add(1)
		go srv.handle(conn)
	}
}

func (srv *Server) handle(conn net.Conn) {
	defer srv.wg.Done()

	id := atomic.AddUint32(&srv.nextID, 1)
	secret := randomSecret()

	sess := NewSession(id, secret, conn, srv.cfg, srv.logger)
	sess.metrics = srv.metrics
	sess.SetCancelHandler(srv.routeCancel)

	srv.mu.Lock()
	srv.sessions[id] = sess
	srv.mu.Unlock()
	defer func() {
		srv.mu.Lock()
		delete(srv.sessions, id)
		srv.mu.Unlock()
	}()

	sess.Run()
}

// routeCancel routes a bootstrap CancelRequest's (pid, secret) pair to the
// matching Session. A mismatched secret is silently ignored.
func (srv *Server) routeCancel(pid, secret uint32) {
	srv.mu.Lock()
	sess, ok := srv.sessions[pid]
	srv.mu.Unlock()
	if ok && sess.secret == secret {
		sess.Cancel()
	}
}

// Shutdown stops accepting new connections and forcibly terminates every
// open Session.
func (srv *Server) Shutdown() {
	srv.cancel()
	srv.mu.Lock()
	sessions := make([]*Session, 0, len(srv.sessions))
	for _, sess := range srv.sessions {
		sessions = append(sessions, sess)
	}
	srv.mu.Unlock()
	for _, sess := range sessions {
		sess.Terminate()
	}
}

// randomSecret generates BackendKeyData's per-connection cancel secret.
func randomSecret() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(os.Getpid())
	}
	return binary.BigEndian.Uint32(b[:])
}
