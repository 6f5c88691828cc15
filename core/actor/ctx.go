package actor

import (
	"context"
	"log/slog"
)

type (
	HandlerCtx interface {
		context.Context
		Log() *slog.Logger
		// Schedule runs f detached from the mailbox.
		Schedule(f scheduleFunc)
	}
)

type selfKey struct{}

type handlerCtx struct {
	context.Context
	log   *slog.Logger
	sched Scheduler
}

func (hc *handlerCtx) Schedule(f scheduleFunc) { hc.sched.Schedule(f) }
func (hc *handlerCtx) Log() *slog.Logger       { return hc.log }

func newHandlerCtx(ctx context.Context, a *Actor, log *slog.Logger, sched Scheduler) *handlerCtx {
	return &handlerCtx{
		Context: context.WithValue(ctx, selfKey{}, a),
		log:     log,
		sched:   sched,
	}
}

func isSelf(ctx context.Context, a *Actor) bool {
	v, _ := ctx.Value(selfKey{}).(*Actor)
	return v == a
}

var _ HandlerCtx = (*handlerCtx)(nil)
