package instances

import (
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/bridges"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/schedulers"
	"github.com/reusee/botrun/states"
)

type Module struct {
	dscope.Module
	Schedulers schedulers.Module
	Bridges    bridges.Module
	States     states.Module
}

type Config struct {
	Scheduler      schedulers.Config
	Bridge         bridges.Config
	Slots          []states.SlotSpec
	ReportInterval time.Duration
	// Count is how many copies of the program the host starts.
	Count int
	// MaxRunning bounds concurrently running instances. Zero is unbounded.
	MaxRunning int
	// FlushTimeout bounds how long a faulted instance waits for its queue to reach the peer.
	FlushTimeout time.Duration
}

const (
	DefaultReportInterval = time.Second
	DefaultFlushTimeout   = time.Second
)

func DefaultConfig() Config {
	return Config{
		Scheduler:      schedulers.DefaultConfig(),
		Bridge:         bridges.DefaultConfig(),
		Slots:          states.RobotSlots(),
		ReportInterval: DefaultReportInterval,
		Count:          1,
		FlushTimeout:   DefaultFlushTimeout,
	}
}

func (Module) Config(
	scheduler schedulers.Config,
	bridge bridges.Config,
	slots states.SlotSpecs,
	loader configs.Loader,
) Config {
	config := DefaultConfig()
	config.Scheduler = scheduler
	config.Bridge = bridge
	config.Slots = slots
	if d := configs.Duration(loader, "report_interval"); d > 0 {
		config.ReportInterval = d
	}
	if n := configs.First[int](loader, "instances"); n > 0 {
		config.Count = n
	}
	if n := configs.First[int](loader, "max_running"); n > 0 {
		config.MaxRunning = n
	}
	return config
}

// ForInstance is the config of the i-th instance the host starts.
func (c Config) ForInstance(i int) (Config, error) {
	bridge, err := c.Bridge.ForInstance(i)
	if err != nil {
		return c, err
	}
	c.Bridge = bridge
	return c, nil
}
