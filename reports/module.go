package reports

import (
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

const (
	DefaultChannel  = "botrun:global_state"
	DefaultKey      = "botrun:global_state"
	DefaultInterval = time.Second
)

type Config struct {
	// RedisAddr enables the redis publisher when set.
	RedisAddr string
	Channel   string
	Key       string
	// HTTPAddr enables the status server when set.
	HTTPAddr string
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Channel:  DefaultChannel,
		Key:      DefaultKey,
		Interval: DefaultInterval,
	}
}

func (Module) Config(
	loader configs.Loader,
) Config {
	config := DefaultConfig()
	config.RedisAddr = configs.First[string](loader, "redis_addr")
	config.HTTPAddr = configs.First[string](loader, "report_addr")
	if d := configs.Duration(loader, "report_interval"); d > 0 {
		config.Interval = d
	}
	return config
}
