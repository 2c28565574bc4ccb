package schedulers

import (
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

type Config struct {
	TickHz      float64
	StepTimeout time.Duration
	// MaxStepFailures is the number of consecutive step faults tolerated. Zero never escalates.
	MaxStepFailures int
}

const (
	DefaultTickHz          = 10
	DefaultStepTimeout     = time.Millisecond * 500
	DefaultMaxStepFailures = 10
)

func DefaultConfig() Config {
	return Config{
		TickHz:          DefaultTickHz,
		StepTimeout:     DefaultStepTimeout,
		MaxStepFailures: DefaultMaxStepFailures,
	}
}

func (c Config) Period() time.Duration {
	hz := c.TickHz
	if hz <= 0 {
		hz = DefaultTickHz
	}
	return time.Duration(float64(time.Second) / hz)
}

func (Module) Config(
	loader configs.Loader,
) Config {
	config := DefaultConfig()
	if hz := configs.First[float64](loader, "tick_hz"); hz > 0 {
		config.TickHz = hz
	}
	if d := configs.Duration(loader, "step_timeout"); d > 0 {
		config.StepTimeout = d
	}
	if n, ok := configs.Lookup[int](loader, "max_step_failures"); ok {
		config.MaxStepFailures = n
	}
	return config
}
