package monitor

import (
	"sync"
	"time"

	"github.com/customeros/mailchannel/internal/enum"
)

// RuntimeState is the process lifetime health record of one account
type RuntimeState struct {
	Phase          enum.MonitorState `json:"phase,omitempty"`
	Running        bool              `json:"running"`
	LastStartAt    *time.Time        `json:"lastStartAt"`
	LastStopAt     *time.Time        `json:"lastStopAt"`
	LastError      string            `json:"lastError,omitempty"`
	LastInboundAt  *time.Time        `json:"lastInboundAt,omitempty"`
	LastOutboundAt *time.Time        `json:"lastOutboundAt,omitempty"`
	LastProbeAt    *time.Time        `json:"lastProbeAt,omitempty"`
}

// StatePatch only overwrites the fields that are set. An empty LastError clears the error.
type StatePatch struct {
	Phase          enum.MonitorState
	Running        *bool
	LastStartAt    *time.Time
	LastStopAt     *time.Time
	LastError      *string
	LastInboundAt  *time.Time
	LastOutboundAt *time.Time
	LastProbeAt    *time.Time
}

type StateStore struct {
	mutex  sync.RWMutex
	states map[string]RuntimeState
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]RuntimeState)}
}

func stateKey(accountID string) string {
	return "agentmail:" + accountID
}

// Get returns a copy and whether the account was ever recorded
func (s *StateStore) Get(accountID string) (RuntimeState, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	state, ok := s.states[stateKey(accountID)]
	return state, ok
}

func (s *StateStore) Record(accountID string, patch StatePatch) RuntimeState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := stateKey(accountID)
	state := s.states[key]
	if patch.Phase != "" {
		state.Phase = patch.Phase
	}
	if patch.Running != nil {
		state.Running = *patch.Running
	}
	if patch.LastStartAt != nil {
		state.LastStartAt = patch.LastStartAt
	}
	if patch.LastStopAt != nil {
		state.LastStopAt = patch.LastStopAt
	}
	if patch.LastError != nil {
		state.LastError = *patch.LastError
	}
	if patch.LastInboundAt != nil {
		state.LastInboundAt = patch.LastInboundAt
	}
	if patch.LastOutboundAt != nil {
		state.LastOutboundAt = patch.LastOutboundAt
	}
	if patch.LastProbeAt != nil {
		state.LastProbeAt = patch.LastProbeAt
	}
	s.states[key] = state
	return state
}

// Snapshot copies every recorded state keyed by store key
func (s *StateStore) Snapshot() map[string]RuntimeState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[string]RuntimeState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

func stringPtr(s string) *string {
	return &s
}
