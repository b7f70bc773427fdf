package introspection

import (
	"tradecore/internal/bus"
	"tradecore/internal/cache"
	"tradecore/internal/data"
	"tradecore/internal/execution"
)

// Snapshot is the read-only statistics payload served from /stats and
// pushed over /stream. Every field is a plain value snapshot: nothing here
// lets a client mutate runtime state.
type Snapshot struct {
	Cache     cache.Statistics      `json:"cache"`
	Bus       bus.Stats             `json:"bus"`
	Data      data.Stats            `json:"data"`
	Execution execution.Statistics  `json:"execution"`
}

// Provider supplies the live statistics a Server reports. internal/runtime's
// Runtime implements this directly over its owned components.
type Provider interface {
	CacheStatistics() cache.Statistics
	BusStats() bus.Stats
	DataStats() data.Stats
	ExecutionStatistics() execution.Statistics
}

func buildSnapshot(p Provider) Snapshot {
	return Snapshot{
		Cache:     p.CacheStatistics(),
		Bus:       p.BusStats(),
		Data:      p.DataStats(),
		Execution: p.ExecutionStatistics(),
	}
}
