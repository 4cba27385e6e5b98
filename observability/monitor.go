package observability

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// EngineStats is one snapshot of the engine's counters plus the
// process's own resource usage.
type EngineStats struct {
	RoomsActive      int64   `json:"rooms_active"`
	OccupantsJoined  uint64  `json:"occupants_joined"`
	DeltasCommitted  uint64  `json:"deltas_committed"`
	DeltasRejected   uint64  `json:"deltas_rejected"`
	Evictions        uint64  `json:"evictions"`
	EventsDelivered  uint64  `json:"events_delivered"`
	DeliveryFailures uint64  `json:"delivery_failures"`
	CPUPercent       float64 `json:"cpu_percent"`
	RSSBytes         uint64  `json:"rss_bytes"`
}

// Monitor aggregates engine telemetry. All counters are atomic; the
// snapshot adds self process stats on demand.
type Monitor struct {
	log  *slog.Logger
	self *process.Process

	roomsActive      int64
	occupantsJoined  uint64
	deltasCommitted  uint64
	deltasRejected   uint64
	evictions        uint64
	eventsDelivered  uint64
	deliveryFailures uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Self process stats unavailable", "error", err)
	}
	return &Monitor{log: log, self: self}
}

func (m *Monitor) RoomOpened()     { atomic.AddInt64(&m.roomsActive, 1) }
func (m *Monitor) RoomClosed()     { atomic.AddInt64(&m.roomsActive, -1) }
func (m *Monitor) OccupantJoined() { atomic.AddUint64(&m.occupantsJoined, 1) }
func (m *Monitor) DeltaCommitted() { atomic.AddUint64(&m.deltasCommitted, 1) }
func (m *Monitor) DeltaRejected()  { atomic.AddUint64(&m.deltasRejected, 1) }
func (m *Monitor) Evicted()        { atomic.AddUint64(&m.evictions, 1) }
func (m *Monitor) EventDelivered() { atomic.AddUint64(&m.eventsDelivered, 1) }
func (m *Monitor) DeliveryFailed() { atomic.AddUint64(&m.deliveryFailures, 1) }

func (m *Monitor) Snapshot() EngineStats {
	stats := EngineStats{
		RoomsActive:      atomic.LoadInt64(&m.roomsActive),
		OccupantsJoined:  atomic.LoadUint64(&m.occupantsJoined),
		DeltasCommitted:  atomic.LoadUint64(&m.deltasCommitted),
		DeltasRejected:   atomic.LoadUint64(&m.deltasRejected),
		Evictions:        atomic.LoadUint64(&m.evictions),
		EventsDelivered:  atomic.LoadUint64(&m.eventsDelivered),
		DeliveryFailures: atomic.LoadUint64(&m.deliveryFailures),
	}
	if m.self != nil {
		if cpu, err := m.self.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
		if mem, err := m.self.MemoryInfo(); err == nil && mem != nil {
			stats.RSSBytes = mem.RSS
		}
	}
	return stats
}

// Report logs one snapshot. Called by the telemetry worker on its tick.
func (m *Monitor) Report() {
	stats := m.Snapshot()
	m.log.Info("Engine stats",
		"rooms", stats.RoomsActive,
		"occupants_joined", stats.OccupantsJoined,
		"deltas_committed", stats.DeltasCommitted,
		"deltas_rejected", stats.DeltasRejected,
		"evictions", stats.Evictions,
		"events_delivered", stats.EventsDelivered,
		"delivery_failures", stats.DeliveryFailures,
		"cpu_percent", stats.CPUPercent,
		"rss_bytes", stats.RSSBytes,
		"at", time.Now().UTC(),
	)
}

// Stats feeds the debug server's dashboard.
func (m *Monitor) Stats() map[string]any {
	stats := m.Snapshot()
	return map[string]any{
		"rooms_active":      stats.RoomsActive,
		"occupants_joined":  stats.OccupantsJoined,
		"deltas_committed":  stats.DeltasCommitted,
		"deltas_rejected":   stats.DeltasRejected,
		"evictions":         stats.Evictions,
		"events_delivered":  stats.EventsDelivered,
		"delivery_failures": stats.DeliveryFailures,
	}
}
