package consoles

import (
	"os"
	"path/filepath"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

type Config struct {
	Enabled     bool
	Prompt      string
	HistoryFile string
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	config := Config{
		Enabled: true,
		Prompt:      "> ",
		CallTimeout: DefaultCallTimeout,
	}
	if dir, err := os.UserCacheDir(); err == nil {
		config.HistoryFile = filepath.Join(dir, "botrun_history")
	}
	return config
}

func (Module) Config(
	loader configs.Loader,
) Config {
	config := DefaultConfig()
	if enabled, ok := configs.Lookup[bool](loader, "console"); ok {
		config.Enabled = enabled
	}
	if d := configs.Duration(loader, "call_timeout"); d > 0 {
		config.CallTimeout = d
	}
	return config
}
