package modes

import (
	"testing"

	"github.com/reusee/dscope"
)

// ModuleForProduction is the mode the botrun binary runs under. Peer connections
// honor proxy_addr and the ALL_PROXY family of variables only in this mode.
type ModuleForProduction struct {
	dscope.Module
}

func ForProduction() ModuleForProduction {
	return ModuleForProduction{}
}

// T is nil outside tests.
func (ModuleForProduction) T() *testing.T {
	return nil
}

func (ModuleForProduction) Mode() Mode {
	return ModeProduction
}
