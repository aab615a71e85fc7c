package player

import (
	"sync"

	"github.com/vexolabs/vexo/pkg/discover"
	"github.com/vexolabs/vexo/pkg/taste"
)

// HostConfig configures a [Host].
type HostConfig struct {
	// Store is the shared taste store. Required.
	Store *taste.Store

	// Ledger is the shared vote ledger. Required.
	Ledger *taste.Ledger

	// Pool is the shared candidate pool. Required.
	Pool *discover.Pool

	// Resolver resolves track ids to streams. Required.
	Resolver Resolver

	// NewSink builds the audio sink for a guild. Required; each session
	// owns its sink.
	NewSink func(guildID string) AudioSink

	// Temperature and TopK parameterize each session's selector.
	Temperature float64
	TopK        int

	// Playback holds the controller timing knobs.
	Playback Config
}

// Host is the process-level entry point for playback. It manages one
// Session per guild; all sessions share the taste store, ledger, and
// candidate pool but own their playback state.
//
// Host is safe for concurrent use.
type Host struct {
	cfg HostConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHost creates a host. Store, Ledger, Pool, Resolver, and NewSink
// are required.
func NewHost(cfg HostConfig) *Host {
	switch {
	case cfg.Store == nil:
		panic("player: HostConfig.Store is required")
	case cfg.Ledger == nil:
		panic("player: HostConfig.Ledger is required")
	case cfg.Pool == nil:
		panic("player: HostConfig.Pool is required")
	case cfg.Resolver == nil:
		panic("player: HostConfig.Resolver is required")
	case cfg.NewSink == nil:
		panic("player: HostConfig.NewSink is required")
	}
	return &Host{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open returns the Session for a guild, creating it on first use.
// Subsequent calls with the same id return the same instance.
func (h *Host) Open(guildID string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.sessions[guildID]; ok {
		return s
	}

	selector := discover.NewSelector(h.cfg.Temperature, h.cfg.TopK, nil)
	s := NewSession(guildID, h.cfg.Store, h.cfg.Ledger, h.cfg.Pool,
		selector, h.cfg.Resolver, h.cfg.NewSink(guildID), h.cfg.Playback)
	h.sessions[guildID] = s
	return s
}

// Close stops every session. After Close the host should not be used.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var first error
	for _, s := range h.sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	h.sessions = nil
	return first
}
