package states

import (
	"github.com/reusee/dscope"
	"github.com/reusee/botrun/configs"
)

type Module struct {
	dscope.Module
	Configs configs.Module
}

type SlotSpecs []SlotSpec

// SlotSpecs reads the slot lists of every config document, falling back to the robot slots.
// When documents declare the same slot name, the higher precedence document wins.
func (Module) SlotSpecs(
	loader configs.Loader,
) SlotSpecs {
	var specs SlotSpecs
	seen := make(map[string]bool)
	for list := range configs.All[[]SlotSpec](loader, "slots") {
		for _, spec := range list {
			if seen[spec.Name] {
				continue
			}
			seen[spec.Name] = true
			specs = append(specs, spec)
		}
	}
	if len(specs) > 0 {
		return specs
	}
	return RobotSlots()
}
