// Package system is the location-transparent actor runtime.
//
// A [System] owns the actor [Registry], the table of outstanding calls and
// the single peer connection of the process. Actors are looked up by
// [identity.ID]; when an id is not known locally the caller talks to it
// through a stub that turns method calls into Call envelopes:
//
//	room, ok, err := system.Resolve[*RoomActor](sys, id)
//	if !ok {
//	    // not local: go through the wire
//	    state, err := system.Call[RoomState](ctx, sys, id, "currentState")
//	}
//
// Inbound calls are dispatched to actors that implement [Receiver]. Their
// [Targets] table maps invocation target names to typed handlers, built
// with [Target0], [Target1] and [Target1Void].
//
// Two roles exist. A client dials exactly one server and issues calls. A
// server accepts connections and answers calls but never initiates them;
// [RemoteCall] on a server fails with [ErrServerInitiated].
package system
