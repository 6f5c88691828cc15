package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/wsactor/adapters/prometheus"
	"github.com/codewandler/wsactor/chat"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/system"
	"github.com/codewandler/wsactor/core/transport"
	"github.com/codewandler/wsactor/ports/store"
)

type MetricsConfig struct {
	Enabled bool
	// Path defaults to /metrics.
	Path     string
	Registry *promclient.Registry
}

type ServerConfig struct {
	Context context.Context
	Log     *slog.Logger
	// Addr is the listen address; port 0 picks a free port.
	Addr string
	// Path of the websocket endpoint, defaults to "/".
	Path string
	// Host is advertised in actor identities when Addr binds a wildcard.
	Host    string
	Store   store.Store
	Metrics MetricsConfig
}

type Server struct {
	ctx       context.Context
	cancelCtx context.CancelFunc
	log       *slog.Logger
	host      string

	sys     *system.System
	srv     *transport.Server
	dir     *chat.Directory
	store   store.Store
	metrics *prometheus.AllMetrics
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Store == nil {
		return nil, errors.New("app: store is required")
	}

	// === logger ===
	if config.Log == nil {
		config.Log = slog.Default()
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:8888"
	}

	s := &Server{log: config.Log.With(slog.String("app", "server")), store: config.Store}

	// === context ===
	if config.Context == nil {
		config.Context = context.Background()
	}
	s.ctx, s.cancelCtx = context.WithCancel(config.Context)

	host, portStr, err := net.SplitHostPort(config.Addr)
	if err != nil {
		return nil, fmt.Errorf("app: addr %q: %w", config.Addr, err)
	}
	port, _ := strconv.Atoi(portStr)
	if config.Host != "" {
		host = config.Host
	}
	s.host = host

	// === metrics ===
	sysOpts := system.Options{
		Mode:     system.ModeServer,
		Endpoint: identity.Endpoint{Protocol: identity.ProtocolWS, Host: host, Port: port},
		Log:      config.Log,
	}
	routes := map[string]http.Handler{}
	dirOpts := chat.DirectoryOptions{Store: config.Store, Log: config.Log}
	if config.Metrics.Enabled {
		reg := config.Metrics.Registry
		if reg == nil {
			reg = promclient.NewRegistry()
		}
		s.metrics = prometheus.NewAllMetrics(reg)
		sysOpts.Metrics = s.metrics.System
		dirOpts.ActorMetrics = s.metrics.Actor

		path := config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		routes[path] = s.metrics.Handler()
	}

	// === system + chat actors ===
	s.sys = system.New(sysOpts)
	s.dir = chat.RegisterFactories(s.sys, dirOpts)

	s.srv, err = s.sys.NewServer(transport.ServerOptions{
		Addr:   config.Addr,
		Path:   config.Path,
		Log:    config.Log,
		Routes: routes,
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) System() *system.System          { return s.sys }
func (s *Server) Directory() *chat.Directory      { return s.dir }
func (s *Server) Metrics() *prometheus.AllMetrics { return s.metrics }

// Endpoint is the advertised endpoint, valid after Start.
func (s *Server) Endpoint() identity.Endpoint { return s.sys.Endpoint() }

// Start binds the listener and serves in the background.
func (s *Server) Start() (<-chan error, error) {
	if err := s.srv.Listen(); err != nil {
		return nil, err
	}
	s.sys.SetEndpoint(identity.Endpoint{Protocol: identity.ProtocolWS, Host: s.host, Port: s.srv.Port()})

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ctx) }()

	s.log.Info("server started", slog.String("endpoint", s.sys.Endpoint().String()))
	return errCh, nil
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	errCh, err := s.Start()
	if err != nil {
		return err
	}
	select {
	case err = <-errCh:
	case <-s.ctx.Done():
		err = <-errCh
	}
	return err
}

// Stop closes connections, stops the actors and releases the store.
func (s *Server) Stop() error {
	errs := []error{s.srv.Close()}
	s.cancelCtx()
	s.dir.Close()
	errs = append(errs, s.sys.Close(), s.store.Close())
	s.log.Info("server stopped")
	return errors.Join(errs...)
}

type ClientConfig struct {
	Log      *slog.Logger
	Endpoint identity.Endpoint
	Path     string
}

type Client struct {
	sys *system.System
}

// NewClient connects to the server at config.Endpoint.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.Log == nil {
		config.Log = slog.Default()
	}
	sys := system.New(system.Options{
		Mode:     system.ModeClient,
		Endpoint: config.Endpoint,
		Log:      config.Log.With(slog.String("app", "client")),
	})
	if err := sys.Connect(ctx, transport.DialOptions{Path: config.Path}); err != nil {
		_ = sys.Close()
		return nil, err
	}
	return &Client{sys: sys}, nil
}

func (c *Client) System() *system.System { return c.sys }

func (c *Client) User(name string) (chat.User, error) { return chat.ResolveUser(c.sys, name) }

func (c *Client) Room(name string) (chat.Room, error) { return chat.ResolveRoom(c.sys, name) }

func (c *Client) Close() error { return c.sys.Close() }
