package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const indexPage = "<html><head></head><body><h2>wsactor server</h2></body></html>"

type ServerOptions struct {
	Addr    string
	Path    string // websocket path, defaults to "/"
	Handler Handler
	Log     *slog.Logger
	// Routes are mounted next to the websocket endpoint, e.g. /metrics.
	Routes    map[string]http.Handler
	ReadLimit int64
}

type Server struct {
	opts ServerOptions
	log  *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	srv    *http.Server
	conns  map[*WSConn]struct{}
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Handler == nil {
		return nil, ErrNoHandler
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		log:    log.With(slog.String("transport", "ws"), slog.String("role", "server")),
		conns:  make(map[*WSConn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	for p, h := range opts.Routes {
		mux.Handle(p, h)
	}
	mux.HandleFunc(opts.Path, s.handle)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Listen binds the socket. A failure here is fatal for the process.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Port is the bound TCP port, 0 before Listen.
func (s *Server) Port() int {
	addr := s.Addr()
	if addr == nil {
		return 0
	}
	_, p, _ := net.SplitHostPort(addr.String())
	n, _ := strconv.Atoi(p)
	return n
}

// Serve blocks until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops accepting, closes every live connection and waits for them.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*WSConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(shutdownCtx)
	s.log.Info("server closed")
	return err
}

// Conns is a snapshot of the live connections.
func (s *Server) Conns() []*WSConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*WSConn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !isUpgrade(r) {
		s.serveHTTP(w, r)
		return
	}

	// always upgrade; this is where an auth check would go
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Error("upgrade failed", slog.Any("error", err))
		return
	}

	c := newConn(s.ctx, ws, r.RemoteAddr, s.opts.Handler, s.log, s.opts.ReadLimit)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.CloseNow()
		return
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.log.Info("accepted", slog.String("remote", r.RemoteAddr))
	s.opts.Handler.ConnectionOpened(c)

	c.readLoop()

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Connection", "close")
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", strconv.Itoa(len(indexPage)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
