package main

import (
	"testing"

	"github.com/reusee/botrun/bridges"
	"github.com/reusee/botrun/cmds"
	"github.com/reusee/botrun/consoles"
	"github.com/reusee/botrun/instances"
	"github.com/reusee/botrun/reports"
)

func TestApplyFlags(t *testing.T) {
	if err := cmds.GlobalExecutor.Execute([]string{
		"instances", "3",
		"-hz", "20",
		"-socket", "localhost:9000",
		"-listen",
		"-no-console",
		"-redis", "localhost:6379",
	}); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := cmds.GlobalExecutor.Execute([]string{
			"instances.", "-hz.", "-socket.", "!-listen", "!-no-console", "-redis.",
		}); err != nil {
			t.Fatal(err)
		}
	}()

	instanceConfig := instances.DefaultConfig()
	consoleConfig := consoles.DefaultConfig()
	reportConfig := reports.DefaultConfig()
	applyFlags(&instanceConfig, &consoleConfig, &reportConfig)

	if instanceConfig.Count != 3 {
		t.Fatalf("got %v", instanceConfig.Count)
	}
	if instanceConfig.Scheduler.TickHz != 20 {
		t.Fatalf("got %v", instanceConfig.Scheduler.TickHz)
	}
	if instanceConfig.Bridge.Transport != bridges.TransportSocket ||
		instanceConfig.Bridge.SocketAddr != "localhost:9000" ||
		instanceConfig.Bridge.SocketMode != bridges.SocketListen {
		t.Fatalf("got %+v", instanceConfig.Bridge)
	}
	if consoleConfig.Enabled {
		t.Fatal("console should be disabled")
	}
	if reportConfig.RedisAddr != "localhost:6379" || reportConfig.HTTPAddr != "" {
		t.Fatalf("got %+v", reportConfig)
	}
}
