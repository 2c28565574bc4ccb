package nets

import (
	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
	"github.com/reusee/botrun/logs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}
