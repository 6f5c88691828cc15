package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type (
	OnPanic func(recovered any, stack []byte, name string)

	// Reply carries the result of one handler execution.
	Reply struct {
		Result any
		Error  error
	}

	handlerFunc func(hc HandlerCtx) (any, error)

	envelope struct {
		name  string
		fn    handlerFunc
		reply chan Reply
	}
)

type Options struct {
	// ID labels logs and metrics.
	ID          string
	MailboxSize int
	Context     context.Context
	Logger      *slog.Logger
	OnPanic     OnPanic
	// MaxConcurrentTasks caps the number of tasks run via HandlerCtx.Schedule.
	// If 0 or negative, it defaults to 32.
	MaxConcurrentTasks int
	Metrics            ActorMetrics
}

type Actor struct {
	id      string
	log     *slog.Logger
	metrics ActorMetrics
	onPanic OnPanic

	ctx    context.Context
	cancel context.CancelFunc
	sched  Scheduler

	mailbox chan envelope
	stop    chan struct{}
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func New(opt Options) *Actor {
	if opt.MailboxSize <= 0 {
		opt.MailboxSize = 1024
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.MaxConcurrentTasks <= 0 {
		opt.MaxConcurrentTasks = 32
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}

	log := opt.Logger
	if opt.ID != "" {
		log = log.With(slog.String("actor", opt.ID))
	}
	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, name string) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.String("msg", name))
		}
	}

	ctx, cancel := context.WithCancel(opt.Context)
	a := &Actor{
		id:      opt.ID,
		log:     log,
		metrics: opt.Metrics,
		onPanic: opt.OnPanic,
		ctx:     ctx,
		cancel:  cancel,
		mailbox: make(chan envelope, opt.MailboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.sched = NewSchedulerWithMetrics(opt.MaxConcurrentTasks, ctx, opt.ID, opt.Metrics, log)

	go a.loop(newHandlerCtx(ctx, a, log, a.sched))
	return a
}

// Done is closed when the actor stops.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Stop ends the mailbox loop, cancels the actor context and waits for
// scheduled tasks. Work still queued fails with ErrStopped.
func (a *Actor) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	<-a.done
	a.cancel()
	a.sched.Wait()
}

// Do runs fn on the actor goroutine and waits for it.
func (a *Actor) Do(ctx context.Context, name string, fn func(hc HandlerCtx) error) error {
	_, err := a.request(ctx, name, func(hc HandlerCtx) (any, error) {
		return nil, fn(hc)
	})
	return err
}

// Ask runs fn on the actor goroutine and returns its result.
func Ask[R any](ctx context.Context, a *Actor, name string, fn func(hc HandlerCtx) (R, error)) (R, error) {
	var zero R
	res, err := a.request(ctx, name, func(hc HandlerCtx) (any, error) {
		return fn(hc)
	})
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	return res.(R), nil
}

func (a *Actor) request(ctx context.Context, name string, fn handlerFunc) (any, error) {
	if isSelf(ctx, a) {
		return nil, fmt.Errorf("%w: %s", ErrSelfRequest, name)
	}
	if a.isClosed() {
		return nil, ErrStopped
	}

	reply := make(chan Reply, 1)
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("send failed: %w", ctx.Err())
	case <-a.stop:
		return nil, ErrStopped
	case a.mailbox <- envelope{name: name, fn: fn, reply: reply}:
		a.metrics.MailboxDepth(a.id, len(a.mailbox))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		// the loop may have answered right before stopping
		select {
		case r := <-reply:
			return r.Result, r.Error
		default:
			return nil, ErrStopped
		}
	case r := <-reply:
		return r.Result, r.Error
	}
}

func (a *Actor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Actor) loop(hc *handlerCtx) {
	defer close(a.done)

	for {
		select {
		case <-a.stop:
			return
		case <-a.ctx.Done():
			return
		case env := <-a.mailbox:
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
			res, err := a.handle(hc, env)
			env.reply <- Reply{Result: res, Error: err}
		}
	}
}

func (a *Actor) handle(hc HandlerCtx, env envelope) (res any, err error) {
	defer a.metrics.MessageDuration(env.name).ObserveDuration()
	defer func() {
		if r := recover(); r != nil {
			a.metrics.MessagePanic(env.name)
			a.onPanic(r, debug.Stack(), env.name)
			res, err = nil, fmt.Errorf("%w: %s: %v", ErrPanic, env.name, r)
		}
		a.metrics.MessageProcessed(env.name, err == nil)
	}()
	return env.fn(hc)
}
