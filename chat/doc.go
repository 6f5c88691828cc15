// Package chat implements chat rooms and users as state actors on the
// wsactor runtime.
//
// Both actors live on the server, created on demand when a call for a
// "Room" or "User" identity arrives. Clients talk to them through stubs
// that forward every operation as a remote call:
//
//	sys := system.New(system.Options{Mode: system.ModeClient, Endpoint: ep})
//	_ = sys.Connect(ctx, transport.DialOptions{})
//	user, _ := chat.ResolveUser(sys, "alice")
//	_, err := user.Send(ctx, chat.Join("lobby"))
//
// On the server ResolveRoom and ResolveUser return the local actors, so
// the same code runs on both sides.
package chat
