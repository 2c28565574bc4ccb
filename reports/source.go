package reports

import (
	"maps"
	"slices"

	"github.com/reusee/botrun/frames"
	"github.com/reusee/botrun/instances"
)

// Source provides the aggregated instance reports. *instances.Manager implements it.
type Source interface {
	Snapshots() map[string]instances.Report
}

var _ Source = new(instances.Manager)

// sanitize drops local values that cannot go on the wire.
func sanitize(r instances.Report) instances.Report {
	r.Local, _ = frames.Representable(r.Local)
	return r
}

func sorted(snapshots map[string]instances.Report) []instances.Report {
	ret := make([]instances.Report, 0, len(snapshots))
	for _, id := range slices.Sorted(maps.Keys(snapshots)) {
		ret = append(ret, sanitize(snapshots[id]))
	}
	return ret
}

// GlobalState builds the aggregate frame mapping instance ids to their local state.
func GlobalState(source Source) frames.Frame {
	state := make(map[string]any)
	for id, r := range source.Snapshots() {
		state[id] = sanitize(r).Local
	}
	return frames.GlobalState(state)
}
