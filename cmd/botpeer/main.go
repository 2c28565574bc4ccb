package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/peers"
)

var (
	wsAddr    = cmds.Var[string]("ws")
	tcpAddr   = cmds.Var[string]("tcp")
	heartbeat = cmds.Var[time.Duration]("-heartbeat")
	quiet     = cmds.Switch("-quiet")
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

func main() {
	cmds.Execute(os.Args[1:])
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dscope.New(
		new(Module),
		dscope.Provide(configs.FileLoader(logs.New(os.Stderr))),
	).Call(func(
		logger logs.Logger,
		loader configs.Loader,
	) {
		if *wsAddr == "" && *tcpAddr == "" {
			*wsAddr = peers.DefaultWSAddr
		}

		interval := *heartbeat
		if interval <= 0 {
			interval = configs.Duration(loader, "heartbeat_interval")
		}
		server := peers.NewServer(logger, interval)
		if !*quiet {
			server.OnFrame = func(client string, frame frames.Frame) {
				switch frame.Type {
				case frames.TypeGlobalState:
					logger.InfoContext(ctx, "global state", "client", client, "state", frame.GlobalState)
				case frames.TypeStateUpdate:
					logger.InfoContext(ctx, "state update", "client", client, "seq", frame.Seq, "tick", frame.Tick, "state", frame.State)
				case frames.TypeError:
					logger.WarnContext(ctx, "program error", "client", client, "kind", frame.Kind, "error", frame.Error)
				case frames.TypeReplOutput:
					logger.InfoContext(ctx, "output", "client", client, "output", frame.Output)
				}
			}
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			server.RunHeartbeat(ctx)
		}()

		if *wsAddr != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := server.ListenAndServe(ctx, *wsAddr); err != nil {
					logger.ErrorContext(ctx, "websocket observer", "error", err)
					cancel()
				}
			}()
		}

		if *tcpAddr != "" {
			ln, err := net.Listen("tcp", *tcpAddr)
			if err != nil {
				logger.ErrorContext(ctx, "tcp observer", "error", err)
				cancel()
			} else {
				logger.InfoContext(ctx, "tcp observer", "addr", ln.Addr().String())
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := server.ServeTCP(ctx, ln); err != nil {
						logger.ErrorContext(ctx, "tcp observer", "error", err)
						cancel()
					}
				}()
			}
		}

		wg.Wait()
	})
}
