package daemon

import (
	"time"

	"github.com/prettymuchbryce/globwatch/internal/config"
	"github.com/prettymuchbryce/globwatch/internal/ipc"
)

// HandleStatus returns the current daemon status.
func (c *Controller) HandleStatus() ipc.StatusData {
	c.mu.Lock()
	watches := append([]config.WatchEntry(nil), c.watches...)
	m := c.manager
	c.mu.Unlock()

	statuses := make([]ipc.WatchStatus, len(watches))
	for i, w := range watches {
		ws := ipc.WatchStatus{
			ID:      i,
			Pattern: w.Pattern,
		}
		if st := c.state.GetWatchState(w.Pattern); st != nil {
			lastFired := st.LastFiredAt
			ws.LastFiredAt = &lastFired
			ws.FireCount = st.FireCount
		}
		statuses[i] = ws
	}

	var watchCount, nodeCount int
	if m != nil {
		watchCount = m.WatchCount()
		nodeCount = m.NodeCount()
	}

	return ipc.StatusData{
		ConfigPath:  c.configPath,
		ConfigValid: true,
		Uptime:      time.Since(c.startedAt),
		WatchCount:  watchCount,
		NodeCount:   nodeCount,
		Watches:     statuses,
	}
}
