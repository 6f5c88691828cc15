// Package app wires the chat server and client processes: a runtime
// system, its websocket transport, the backing store and the chat actors.
//
// # Server
//
//	srv, err := app.NewServer(app.ServerConfig{
//	    Addr:  "0.0.0.0:8888",
//	    Store: st,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.Run() // blocks until Stop
//
// # Client
//
//	c, err := app.NewClient(ctx, app.ClientConfig{Endpoint: ep})
//	user, _ := c.User("alice")
//	_, err = user.Send(ctx, chat.Join("lobby"))
package app
