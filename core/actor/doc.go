// Package actor provides a mailbox executor: a goroutine that runs the
// work submitted to it one item at a time, so that state owned by the
// actor needs no lock.
//
// # Submitting work
//
// [Actor.Do] enqueues a function and waits for it to finish. [Ask] does
// the same for functions with a result:
//
//	n, err := actor.Ask(ctx, a, "count", func(hc actor.HandlerCtx) (int, error) {
//	    return len(state.items), nil
//	})
//
// Panics are contained: the submitter gets [ErrPanic], the actor keeps
// running.
//
// # Background Tasks
//
// Work that must not hold up the mailbox (I/O, notifying other actors)
// goes through [HandlerCtx.Schedule]. Scheduled tasks run concurrently,
// bounded by Options.MaxConcurrentTasks, and [Actor.Stop] waits for them.
//
// # Self-Request Detection
//
// Submitting work to an actor from inside one of its own handlers would
// deadlock; it fails with [ErrSelfRequest] instead.
package actor
