// Package reducer implements state actors: actors whose state only moves
// through a reducer applied to serializable actions.
//
// A [StateActor] starts in the [Initial] state and loads its value lazily
// on first access. [StateActor.Send] drains an action queue on the actor's
// mailbox: every reduction is committed right away, follow-up actions are
// appended to the queue, and once the queue is empty the final state is
// published to everyone waiting in [StateActor.Updates].
//
// A reduction returns a [Step]:
//
//	func reduce(s *RoomState, a RoomAction) reducer.Step[RoomAction] {
//	    switch a.Kind {
//	    case Connect:
//	        s.Guests.Add(a.User)
//	        return reducer.Step[RoomAction]{
//	            Next:   reducer.Next(Update(a.User, Online)),
//	            Effect: func(ctx context.Context) error { return store.AddGuest(ctx, s.Name, a.User) },
//	        }
//	    }
//	    return reducer.Step[RoomAction]{}
//	}
//
// Effect runs off the mailbox, behind the effects of earlier transitions,
// and its error is logged and dropped. Stop waits for queued effects. Then runs on
// the mailbox after the commit; use it for calls whose outcome the sender
// must see.
package reducer
