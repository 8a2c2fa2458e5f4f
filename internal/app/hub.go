package app

import (
	"sync"

	"assessment-service/internal/domain"
)

// LeaderboardHub fans leaderboard snapshots out to websocket subscribers,
// keyed by challenge ID.
type LeaderboardHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

// Subscribe returns a channel of snapshots for one challenge. The caller
// must invoke the returned cancel function to avoid leaks.
func (h *LeaderboardHub) Subscribe(challengeID string) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	set, ok := h.subs[challengeID]
	if !ok {
		set = make(map[chan domain.Leaderboard]struct{})
		h.subs[challengeID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[challengeID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, challengeID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast pushes a snapshot to every subscriber. A slow subscriber has
// its stale snapshot dropped rather than blocking the rest.
func (h *LeaderboardHub) Broadcast(challengeID string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[challengeID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
