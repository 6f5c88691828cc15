package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/codewandler/wsactor/chat"
	"github.com/codewandler/wsactor/core/app"
	"github.com/codewandler/wsactor/core/identity"
	"github.com/codewandler/wsactor/internal/config"
	"github.com/codewandler/wsactor/ports/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "wsactor",
		Usage: "chat rooms on a websocket actor runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				Sources: cli.EnvVars("WSACTOR_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the chat server",
				Action: serve,
			},
			{
				Name:  "chat",
				Usage: "join a room as a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "room", Aliases: []string{"r"}, Value: "lobby"},
					&cli.StringFlag{Name: "say", Usage: "post a message after joining"},
					&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "print room updates until interrupted"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return chatAction(ctx, cmd, out)
				},
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, nil, err
	}
	log := cfg.Log.Logger(os.Stderr)
	slog.SetDefault(log)
	return cfg, log, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := app.OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	srv, err := app.NewServer(app.ServerConfig{
		Context: ctx,
		Log:     log,
		Addr:    cfg.Addr(),
		Path:    cfg.Path,
		Store:   st,
		Metrics: app.MetricsConfig{Enabled: cfg.Metrics.Enabled, Path: cfg.Metrics.Path},
	})
	if err != nil {
		_ = st.Close()
		return err
	}

	runErr := srv.Run()
	if err := srv.Stop(); err != nil {
		log.Warn("shutdown", slog.Any("error", err))
	}
	return runErr
}

func chatAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	c, err := app.NewClient(ctx, app.ClientConfig{
		Log:      log,
		Endpoint: identity.Endpoint{Protocol: identity.ProtocolWS, Host: cfg.Host, Port: cfg.Port},
		Path:     cfg.Path,
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	name, roomName := cmd.String("user"), cmd.String("room")
	user, err := c.User(name)
	if err != nil {
		return err
	}
	room, err := c.Room(roomName)
	if err != nil {
		return err
	}

	if _, err := user.Send(ctx, chat.Join(roomName)); err != nil {
		return fmt.Errorf("join %s: %w", roomName, err)
	}
	if say := cmd.String("say"); say != "" {
		if _, err := user.Send(ctx, chat.Send(say)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	rs, err := room.CurrentState(ctx)
	if err != nil {
		return err
	}
	printRoom(out, rs)

	if cmd.Bool("follow") {
		for {
			rs, err = room.Updates(ctx)
			if err != nil {
				break
			}
			printRoom(out, rs)
		}
	}

	// leave with a fresh context, ctx may be cancelled already
	_, err = user.Send(context.WithoutCancel(ctx), chat.Exit())
	return err
}

type line struct {
	user string
	msg  store.Message
}

func printRoom(out io.Writer, rs chat.RoomState) {
	fmt.Fprintf(out, "# %s\n", rs.Name)
	for _, guest := range rs.Guests {
		fmt.Fprintf(out, "  %s (%s)\n", guest, rs.Statuses[guest])
	}
	var lines []line
	for user, msgs := range rs.Messages {
		for _, m := range msgs {
			lines = append(lines, line{user: user, msg: m})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].msg.CreatedAt.Before(lines[j].msg.CreatedAt) })
	for _, l := range lines {
		fmt.Fprintf(out, "[%s] %s: %s\n", l.msg.CreatedAt.Format("15:04:05"), l.user, l.msg.Text)
	}
}
