package queue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
)

// GateState models browser audio-permission state: playback needs a prior
// user gesture, so the gate starts locked and opens on the first qualifying
// input event reported by the client.
type GateState int

const (
	GateLocked GateState = iota
	GateUnlocking
	GateUnlocked
)

func (s GateState) String() string {
	switch s {
	case GateLocked:
		return "locked"
	case GateUnlocking:
		return "unlocking"
	case GateUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// PreferenceKey is where the operator's sound on/off choice persists between
// sessions, stored as "true"/"false".
const PreferenceKey = "queueSoundEnabled"

// AlertGate decides whether a new-order signal may carry the audio cue.
// While locked, signals are swallowed, never queued for later replay. With
// the preference off the state machine does not run at all.
type AlertGate struct {
	mu      sync.Mutex
	enabled bool
	state   GateState

	prefs  cache.Store
	logger *zap.Logger
}

// NewAlertGate builds a gate with the given default preference; Load
// overrides the default from the persisted value.
func NewAlertGate(prefs cache.Store, defaultEnabled bool, logger *zap.Logger) *AlertGate {
	return &AlertGate{
		enabled: defaultEnabled,
		state:   GateLocked,
		prefs:   prefs,
		logger:  logger,
	}
}

// Load reads the persisted preference. A missing key keeps the default; a
// store failure is logged and keeps the default too.
func (g *AlertGate) Load(ctx context.Context) {
	if g.prefs == nil {
		return
	}
	raw, err := g.prefs.Get(ctx, PreferenceKey)
	if errors.Is(err, cache.ErrCacheMiss) {
		return
	}
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("sound preference read failed", zap.Error(err))
		}
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = string(raw) == "true"
	if g.enabled {
		g.state = GateLocked
	}
}

// SetEnabled toggles the preference and persists it. Turning the sound on is
// itself a user action, which qualifies as the unlocking gesture.
func (g *AlertGate) SetEnabled(ctx context.Context, enabled bool) error {
	g.mu.Lock()
	g.enabled = enabled
	if enabled {
		g.state = GateUnlocked
	} else {
		g.state = GateLocked
	}
	g.mu.Unlock()

	if g.prefs == nil {
		return nil
	}
	value := "false"
	if enabled {
		value = "true"
	}
	return g.prefs.Set(ctx, PreferenceKey, []byte(value), 0)
}

// Enabled reports the current preference.
func (g *AlertGate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// State reports the gate state; always locked while the preference is off.
func (g *AlertGate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled {
		return GateLocked
	}
	return g.state
}

// NotifyUserGesture records a qualifying input event from the client. The
// first gesture unlocks the gate; later gestures are no-ops. With the
// preference off nothing transitions.
func (g *AlertGate) NotifyUserGesture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.enabled || g.state == GateUnlocked {
		return
	}
	g.state = GateUnlocking
	// The single audio context is created lazily by the client on this same
	// gesture; from the gate's perspective the unlock completes immediately.
	g.state = GateUnlocked
}

// ShouldAnnounce reports whether a new-order signal may play sound right
// now. A locked gate swallows the cue rather than deferring it.
func (g *AlertGate) ShouldAnnounce() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled && g.state == GateUnlocked
}
