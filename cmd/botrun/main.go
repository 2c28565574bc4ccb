package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/reusee/dscope"
	"github.com/reusee/e5"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/consoles"
	"github.com/reusee/botrun/faults"
	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/instances"
	"github.com/reusee/botrun/logs"
	"github.com/reusee/botrun/modes"
	"github.com/reusee/botrun/nets"
	"github.com/reusee/botrun/programs"
	"github.com/reusee/botrun/reports"
	"golang.org/x/term"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

func main() {
	cmds.Execute(os.Args[1:])
	os.Exit(run())
}

func run() (code int) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
		dscope.Provide(configs.FileLoader(logs.New(os.Stderr))),
	)

	scope.Call(func(
		logger logs.Logger,
		loader configs.Loader,
		instanceConfig instances.Config,
		consoleConfig consoles.Config,
		reportConfig reports.Config,
		dialer nets.Dialer,
	) {
		applyFlags(&instanceConfig, &consoleConfig, &reportConfig)

		path := *programPath
		if path == "" {
			path = configs.First[string](loader, "program")
		}
		if path == "" {
			cmds.GlobalExecutor.PrintUsage(os.Stderr)
			code = 2
			return
		}
		content, err := os.ReadFile(path)
		if err != nil {
			printFault(faults.New(faults.LoadError, wrap(err)))
			code = 1
			return
		}
		src := programs.Source{
			Name:    path,
			Content: content,
		}

		manager := instances.NewManager(ctx, instanceConfig.MaxRunning, dialer, logger)

		var insts []*instances.Instance
		for i := range max(instanceConfig.Count, 1) {
			config, err := instanceConfig.ForInstance(i)
			if err != nil {
				logger.ErrorContext(ctx, "instance config", "instance", i, "error", err)
				code = 2
				return
			}
			inst, err := instances.NewInstance(src, config, dialer, logger)
			if err != nil {
				printFault(err)
				code = 1
				return
			}
			insts = append(insts, inst)
		}

		var wg sync.WaitGroup
		serviceCtx, stopServices := context.WithCancel(ctx)
		defer func() {
			stopServices()
			wg.Wait()
		}()

		if consoleConfig.Enabled {
			// the console drives the first instance
			inst := insts[0]
			console := consoles.New(inst.Store(), inst.Program(), os.Stdout, consoles.Options{
				Status:      inst.StatusLine,
				Colors:      term.IsTerminal(int(os.Stdout.Fd())),
				CallTimeout: consoleConfig.CallTimeout,
			})
			defer console.Close()
			inst.AddSink(console.FaultSink())
			inst.AddOutput(console.Output)

			reader, err := consoles.NewLineReader(os.Stdin, os.Stdout, consoleConfig.Prompt, consoleConfig.HistoryFile)
			if err != nil {
				logger.ErrorContext(ctx, "console", "error", err)
			} else {
				interactive := term.IsTerminal(int(os.Stdin.Fd()))
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer reader.Close()
					if err := console.Run(serviceCtx, reader); err != nil {
						logger.ErrorContext(ctx, "console", "error", err)
					}
					if interactive && serviceCtx.Err() == nil {
						// end of input from the operator stops the host
						cancel()
					}
				}()
			}
		}

		for _, inst := range insts {
			manager.Adopt(ctx, inst)
		}

		if reportConfig.HTTPAddr != "" {
			gin.SetMode(gin.ReleaseMode)
			handler := reports.NewHandler(manager, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := reports.Serve(serviceCtx, reportConfig.HTTPAddr, handler, logger); err != nil {
					logger.ErrorContext(ctx, "report server", "error", err)
				}
			}()
		}

		if reportConfig.RedisAddr != "" {
			publisher := reports.NewRedisPublisher(&redis.Options{
				Addr: reportConfig.RedisAddr,
			}, reportConfig, logger)
			defer publisher.Close()
			wg.Add(1)
			go func() {
				defer wg.Done()
				publisher.Run(serviceCtx, manager, reportConfig.Interval)
			}()
		}

		if err := manager.Wait(); err != nil {
			for _, fault := range manager.Faults() {
				printFault(fault)
			}
			code = 1
		}
	})

	return
}

// printFault writes a fatal fault to stdout as a structured error record.
func printFault(err error) {
	fault, ok := faults.As(err)
	if !ok {
		fault = faults.New(faults.LoadError, err)
	}
	frame := frames.ErrorFrame(fault.Kind.String(), fault.Err)
	frame.Instance = fault.Instance
	frame.Tick = fault.Tick
	bs, encodeErr := frames.Encode(frame)
	if encodeErr != nil {
		fmt.Fprintln(os.Stderr, errors.Join(err, encodeErr))
		return
	}
	fmt.Fprintln(os.Stdout, string(bs))
}
