package state

import (
	"context"
	"sync"
)

// Dialog states
const (
	None                   = "none"
	WaitingForTimezone     = "waiting_for_timezone"
	WaitingForMedicineName = "waiting_for_medicine_name"
	WaitingForDoseCount    = "waiting_for_dose_count"
	WaitingForTimes        = "waiting_for_times"
)

// Temp data keys of the add dialog
const (
	KeyMedicine = "medicine"
	KeyCount    = "count"
	KeyTimes    = "times"
)

// StateManager keeps per-user dialog state between messages.
type StateManager interface {
	SetUserState(ctx context.Context, userID int64, state string) error
	GetUserState(ctx context.Context, userID int64) string
	SetTempData(ctx context.Context, userID int64, key, value string) error
	GetTempData(ctx context.Context, userID int64, key string) (string, bool)
	// Reset drops the state and all temp data of a user.
	Reset(ctx context.Context, userID int64) error
}

// Manager manages user states and temporary data in memory
type Manager struct {
	userStates map[int64]string
	tempData   map[int64]map[string]string
	mu         sync.RWMutex
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{
		userStates: make(map[int64]string),
		tempData:   make(map[int64]map[string]string),
	}
}

// SetUserState sets the state for a user
func (m *Manager) SetUserState(_ context.Context, userID int64, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userStates[userID] = state
	return nil
}

// GetUserState gets the state for a user
func (m *Manager) GetUserState(_ context.Context, userID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, exists := m.userStates[userID]
	if !exists {
		return None
	}
	return state
}

// SetTempData sets temporary data for a user
func (m *Manager) SetTempData(_ context.Context, userID int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tempData[userID] == nil {
		m.tempData[userID] = make(map[string]string)
	}
	m.tempData[userID][key] = value
	return nil
}

// GetTempData gets temporary data for a user
func (m *Manager) GetTempData(_ context.Context, userID int64, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, exists := m.tempData[userID][key]
	return value, exists
}

func (m *Manager) Reset(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userStates, userID)
	delete(m.tempData, userID)
	return nil
}
