package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/core/transport"
	"github.com/codewandler/wsactor/core/wire"
)

type Mode int

const (
	ModeClient Mode = iota
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

type Options struct {
	Mode Mode
	// Endpoint is the server endpoint: the one a server is reachable at,
	// or the one a client connects to. Full identities are built on it.
	Endpoint identity.Endpoint
	Log      *slog.Logger
	Metrics  Metrics
	// Types resolves generic substitutions of inbound calls by name.
	Types *wire.TypeRegistry
}

type System struct {
	mode     Mode
	endpoint identity.Endpoint
	log      *slog.Logger
	metrics  Metrics
	types    *wire.TypeRegistry

	registry *Registry
	calls    *correlator

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	peer   transport.Conn // client mode only
	conns  map[transport.Conn]struct{}
	closed bool

	inflight sync.WaitGroup
}

func New(opts Options) *System {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}
	types := opts.Types
	if types == nil {
		types = wire.NewTypeRegistry()
	}
	if opts.Endpoint.Protocol == "" {
		opts.Endpoint.Protocol = identity.ProtocolWS
	}

	log = log.With(slog.String("system", opts.Mode.String()))
	ctx, cancel := context.WithCancel(context.Background())
	return &System{
		mode:     opts.Mode,
		endpoint: opts.Endpoint,
		log:      log,
		metrics:  m,
		types:    types,
		registry: NewRegistry(log, m),
		calls:    newCorrelator(log.With(slog.String("component", "correlator")), m),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[transport.Conn]struct{}),
	}
}

func (s *System) Registry() *Registry               { return s.registry }
func (s *System) Mode() Mode                        { return s.mode }
func (s *System) Log() *slog.Logger                 { return s.log }
func (s *System) Types() *wire.TypeRegistry         { return s.types }
func (s *System) Context() context.Context          { return s.ctx }
func (s *System) NewID() identity.ID                { return s.registry.NewID() }
func (s *System) ClaimID(h identity.ID) identity.ID { return s.registry.ClaimID(h) }
func (s *System) Ready(a Actor)                     { s.registry.Ready(a) }
func (s *System) Resign(id identity.ID)             { s.registry.Resign(id) }
func (s *System) RegisterOnDemand(fn OnDemandFunc)  { s.registry.RegisterOnDemand(fn) }

func (s *System) Endpoint() identity.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// SetEndpoint updates the endpoint, e.g. after a server bound port 0.
func (s *System) SetEndpoint(ep identity.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep.Protocol == "" {
		ep.Protocol = identity.ProtocolWS
	}
	s.endpoint = ep
}

// ActorID builds a full identity for typeTag/localID on the endpoint.
func (s *System) ActorID(typeTag, localID string) identity.ID {
	return identity.Full(typeTag, localID, s.Endpoint())
}

// MakeActorWithID claims id and runs the factory with it.
func MakeActorWithID[A Actor](s *System, id identity.ID, factory func(id identity.ID) A) A {
	return factory(s.ClaimID(id))
}

// ResolveAny resolves ids addressed to this process without a static type.
// A full identity pointing at another endpoint is never resolved locally,
// and on a client no full identity is local.
func (s *System) ResolveAny(id identity.ID) (Actor, bool) {
	if !s.isLocal(id) {
		return nil, false
	}
	a, ok, fromFactory, err := s.registry.resolve(id)
	if err != nil {
		s.log.Error("on-demand resolution failed", slog.String("id", id.String()), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if fromFactory {
		a, _ = s.registry.installIfAbsent(a)
	}
	return a, true
}

func (s *System) isLocal(id identity.ID) bool {
	if !id.IsFull() {
		return true
	}
	if s.mode != ModeServer {
		return false
	}
	ep, own := id.Endpoint(), s.Endpoint()
	if ep.Protocol != own.Protocol || ep.Port != own.Port {
		return false
	}
	return ep.Host == own.Host || isWildcardHost(own.Host)
}

func isWildcardHost(h string) bool {
	return h == "" || h == "0.0.0.0" || h == "::"
}

// Connect dials the server endpoint. Only a client connects, and only once.
func (s *System) Connect(ctx context.Context, opts transport.DialOptions) error {
	if s.mode != ModeClient {
		return fmt.Errorf("%w: connect in %s mode", ErrWrongMode, s.mode)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrConnectionClosed
	}
	if s.peer != nil {
		s.mu.Unlock()
		return fmt.Errorf("system: already connected")
	}
	if opts.Endpoint == (identity.Endpoint{}) {
		opts.Endpoint = s.endpoint
	}
	s.mu.Unlock()

	opts.Handler = s
	if opts.Log == nil {
		opts.Log = s.log
	}
	if opts.Context == nil {
		opts.Context = s.ctx
	}
	_, err := transport.Dial(ctx, opts)
	return err
}

// NewServer creates the transport server that feeds this system.
func (s *System) NewServer(opts transport.ServerOptions) (*transport.Server, error) {
	if s.mode != ModeServer {
		return nil, fmt.Errorf("%w: serve in %s mode", ErrWrongMode, s.mode)
	}
	opts.Handler = s
	if opts.Log == nil {
		opts.Log = s.log
	}
	return transport.NewServer(opts)
}

// Close drops the connection, fails pending calls and waits for inbound
// calls to finish.
func (s *System) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peer := s.peer
	s.mu.Unlock()

	var err error
	if peer != nil {
		err = peer.Close()
	}
	s.cancel()
	s.calls.failAll(ErrConnectionClosed)
	s.inflight.Wait()
	s.log.Debug("closed")
	return err
}

// === transport.Handler ===

func (s *System) ConnectionOpened(c transport.Conn) {
	s.mu.Lock()
	if s.mode == ModeClient {
		s.peer = c
	}
	s.conns[c] = struct{}{}
	n := len(s.conns)
	s.mu.Unlock()

	s.metrics.ConnectionsOpen(n)
	s.log.Info("connection opened", slog.String("remote", c.RemoteAddr()))
}

func (s *System) ConnectionClosed(c transport.Conn, err error) {
	s.mu.Lock()
	wasPeer := s.peer == c
	if wasPeer {
		s.peer = nil
	}
	delete(s.conns, c)
	n := len(s.conns)
	s.mu.Unlock()

	s.metrics.ConnectionsOpen(n)
	if wasPeer {
		s.calls.failAll(ErrConnectionClosed)
	}
	s.log.Info("connection closed", slog.String("remote", c.RemoteAddr()), slog.Any("error", err))
}

var _ transport.Handler = (*System)(nil)
