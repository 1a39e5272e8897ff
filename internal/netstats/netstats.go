// Package netstats tracks tunnel-only throughput across polls of
// get_network_stats (spec §4.6): a mutex-guarded singleton snapshot plus
// session-cumulative totals, reset on demand.
package netstats

import (
	"sync"
	"time"

	"github.com/candyconnect/candyconnectd/internal/platform"
)

// Stats is the JSON-facing result of get_network_stats.
type Stats struct {
	DownloadSpeed float64 `json:"downloadSpeed"` // KB/s
	UploadSpeed   float64 `json:"uploadSpeed"`   // KB/s
	TotalDownload uint64  `json:"totalDownload"` // cumulative bytes this session
	TotalUpload   uint64  `json:"totalUpload"`   // cumulative bytes this session
}

// Tracker is the singleton snapshot/totals pair guarded by mu. A zero-value
// Tracker is ready to use.
type Tracker struct {
	mu sync.Mutex

	hasSnapshot bool
	prev        platform.TunnelCounters
	prevAt      time.Time

	totalDown uint64
	totalUp   uint64
}

// Sample implements spec §4.6's four-step algorithm: read current counters,
// saturating-subtract against the previous snapshot to get a delta, divide
// by elapsed time for a KB/s rate, accumulate the delta into session
// totals, and record the new snapshot for the next call.
func (t *Tracker) Sample(adapter platform.Adapter) (Stats, error) {
	current, err := adapter.ReadTunnelCounters()
	if err != nil {
		return Stats{}, err
	}
	if current == nil {
		current = &platform.TunnelCounters{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var stats Stats

	if t.hasSnapshot {
		elapsed := now.Sub(t.prevAt)
		if elapsed >= 10*time.Millisecond {
			downDelta := saturatingSub(current.BytesRecv, t.prev.BytesRecv)
			upDelta := saturatingSub(current.BytesSent, t.prev.BytesSent)

			kbPerSec := func(deltaBytes uint64) float64 {
				kb := float64(deltaBytes) / 1024
				return round1(kb / elapsed.Seconds())
			}
			stats.DownloadSpeed = kbPerSec(downDelta)
			stats.UploadSpeed = kbPerSec(upDelta)

			t.totalDown += downDelta
			t.totalUp += upDelta
		}
	}

	t.prev = *current
	t.prevAt = now
	t.hasSnapshot = true

	stats.TotalDownload = t.totalDown
	stats.TotalUpload = t.totalUp
	return stats, nil
}

// Reset clears both the snapshot and cumulative totals so the next Sample
// establishes a fresh baseline and reports zero speed (reset_network_session).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasSnapshot = false
	t.prev = platform.TunnelCounters{}
	t.prevAt = time.Time{}
	t.totalDown = 0
	t.totalUp = 0
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
