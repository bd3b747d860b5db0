// Package session holds the per-operator state the bridge reports into and
// the dashboard renders from.
package session

import (
	"sync"

	"github.com/benmeehan/command-bridge/internal/models"
)

// Session is the status channel of one operator session.
//
// connected is set by connect acknowledgements and cleared by the bridge on a
// failed publish. lastStatus is written only by the status listener.
type Session struct {
	id string

	mu             sync.RWMutex
	connected      bool
	statusLine     string
	lastStatus     *models.StatusRecord
	selectedDevice string
	observers      []func(line string)
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{id: id}
}

// ID returns the operator session identifier.
func (s *Session) ID() string {
	return s.id
}

// Connected reports whether the last connect handshake succeeded.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// MarkConnected records a successful connect acknowledgement.
func (s *Session) MarkConnected() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
}

// MarkDisconnected records a failed publish attempt.
func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// StatusLine returns the latest progress message.
func (s *Session) StatusLine() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLine
}

// SetStatus replaces the progress message and notifies observers.
func (s *Session) SetStatus(line string) {
	s.mu.Lock()
	s.statusLine = line
	observers := append([]func(string){}, s.observers...)
	s.mu.Unlock()

	for _, notify := range observers {
		notify(line)
	}
}

// OnStatus registers fn to be called with every new status line.
func (s *Session) OnStatus(fn func(line string)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// LastStatus returns a copy of the latest record for the selected device.
func (s *Session) LastStatus() (models.StatusRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastStatus == nil {
		return models.StatusRecord{}, false
	}
	return *s.lastStatus, true
}

// HasLastStatus reports whether a reply has been stored since the last clear.
func (s *Session) HasLastStatus() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus != nil
}

// StoreStatus keeps record as the latest device status.
func (s *Session) StoreStatus(record models.StatusRecord) {
	s.mu.Lock()
	s.lastStatus = &record
	s.mu.Unlock()
}

// ClearLastStatus forgets the stored record before a new round-trip.
func (s *Session) ClearLastStatus() {
	s.mu.Lock()
	s.lastStatus = nil
	s.mu.Unlock()
}

// SelectedDevice returns the device the operator is looking at.
func (s *Session) SelectedDevice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedDevice
}

// SelectDevice changes the selected device. Switching to another device
// drops the previous device's status and progress line.
func (s *Session) SelectDevice(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedDevice == deviceID {
		return
	}
	s.selectedDevice = deviceID
	s.lastStatus = nil
	s.statusLine = ""
}
