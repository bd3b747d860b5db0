package session

import (
	"testing"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_ConnectedFlag(t *testing.T) {
	s := New("operator")
	assert.False(t, s.Connected())

	s.MarkConnected()
	assert.True(t, s.Connected())

	s.MarkDisconnected()
	assert.False(t, s.Connected())
}

func TestSession_SetStatus_NotifiesObservers(t *testing.T) {
	s := New("operator")
	var seen []string
	s.OnStatus(func(line string) { seen = append(seen, line) })

	s.SetStatus("Connecting...")
	s.SetStatus("Sending message...")

	assert.Equal(t, "Sending message...", s.StatusLine())
	assert.Equal(t, []string{"Connecting...", "Sending message..."}, seen)
}

func TestSession_LastStatus_ReturnsCopy(t *testing.T) {
	s := New("operator")
	_, ok := s.LastStatus()
	assert.False(t, ok)

	s.StoreStatus(models.StatusRecord{DeviceID: "cam-1", Time: "t1"})
	record, ok := s.LastStatus()
	require.True(t, ok)
	record.Time = "changed"

	stored, _ := s.LastStatus()
	assert.Equal(t, "t1", stored.Time)

	s.ClearLastStatus()
	assert.False(t, s.HasLastStatus())
}

func TestSession_SelectDevice_DropsPreviousDeviceState(t *testing.T) {
	s := New("operator")
	s.SelectDevice("cam-1")
	s.StoreStatus(models.StatusRecord{DeviceID: "cam-1"})
	s.SetStatus("Waiting for device response...")

	s.SelectDevice("cam-1")
	assert.True(t, s.HasLastStatus())

	s.SelectDevice("cam-2")
	assert.Equal(t, "cam-2", s.SelectedDevice())
	assert.False(t, s.HasLastStatus())
	assert.Empty(t, s.StatusLine())
}
