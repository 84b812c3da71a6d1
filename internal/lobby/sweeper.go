package lobby

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"souls/internal/events"
)

// Sweep removes rooms nobody can use any more: empty lobby rooms, finished
// rooms and games whose players all disconnected, once idle for IdleTTL.
func (m *Manager) Sweep(now time.Time) []string {
	m.mu.Lock()
	var removed []*Room
	for _, r := range m.rooms {
		if now.Sub(r.touchedAt) < m.cfg.IdleTTL {
			continue
		}
		stale := false
		switch r.state {
		case StateLobby:
			stale = len(r.members) == 0
		case StateFinished:
			stale = true
		case StateInGame:
			stale = !r.anyConnected()
		}
		if stale {
			m.dropLocked(r)
			removed = append(removed, r)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(removed))
	for _, r := range removed {
		ids = append(ids, r.id)
		m.publish(events.Event{Kind: events.RoomDestroyed, RoomID: r.id, RoomName: r.name})
	}
	if len(ids) > 0 {
		m.log.Info("swept idle rooms", zap.Strings("room_ids", ids))
	}
	return ids
}

// StartSweeper runs Sweep on schedule until the returned cron is stopped.
func StartSweeper(schedule string, m *Manager, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.Sweep(time.Now()) }); err != nil {
		return nil, fmt.Errorf("schedule room sweeper %q: %w", schedule, err)
	}
	c.Start()
	log.Info("room sweeper scheduled", zap.String("schedule", schedule))
	return c, nil
}
