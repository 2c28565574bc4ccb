package main

import (
	"github.com/reusee/botrun/bridges"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/consoles"
	"github.com/reusee/botrun/instances"
	"github.com/reusee/botrun/reports"
)

var (
	programPath   = cmds.Var[string]("program")
	instanceCount = cmds.Var[int]("instances")
	maxRunning    = cmds.Var[int]("-max-running")
	tickHz        = cmds.Var[float64]("-hz")
	wsURL         = cmds.Var[string]("-ws")
	socketAddr    = cmds.Var[string]("-socket")
	listen        = cmds.Switch("-listen")
	noPeer        = cmds.Switch("-no-peer")
	noConsole     = cmds.Switch("-no-console")
	reportAddr    = cmds.Var[string]("-report-addr")
	redisAddr     = cmds.Var[string]("-redis")
)

// applyFlags overrides file configuration with command line settings.
func applyFlags(
	instanceConfig *instances.Config,
	consoleConfig *consoles.Config,
	reportConfig *reports.Config,
) {
	if *instanceCount > 0 {
		instanceConfig.Count = *instanceCount
	}
	if *maxRunning > 0 {
		instanceConfig.MaxRunning = *maxRunning
	}
	if *tickHz > 0 {
		instanceConfig.Scheduler.TickHz = *tickHz
	}

	bridge := &instanceConfig.Bridge
	if *wsURL != "" {
		bridge.Transport = bridges.TransportWebsocket
		bridge.URL = *wsURL
	}
	if *socketAddr != "" {
		bridge.Transport = bridges.TransportSocket
		bridge.SocketAddr = *socketAddr
	}
	if *listen {
		bridge.SocketMode = bridges.SocketListen
	}
	if *noPeer {
		bridge.Transport = bridges.TransportNone
	}

	if *noConsole {
		consoleConfig.Enabled = false
	}

	if *reportAddr != "" {
		reportConfig.HTTPAddr = *reportAddr
	}
	if *redisAddr != "" {
		reportConfig.RedisAddr = *redisAddr
	}
}
