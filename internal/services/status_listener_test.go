package services_test

import (
	"testing"

	"github.com/benmeehan/command-bridge/internal/constants"
	"github.com/benmeehan/command-bridge/internal/mocks"
	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/benmeehan/command-bridge/internal/services"
	"github.com/benmeehan/command-bridge/internal/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newListener(selected string) (*services.StatusListener, *session.Session) {
	sess := session.New("test-session")
	sess.SelectDevice(selected)
	return services.NewStatusListener(constants.DefaultStatusTopic, sess, zerolog.Nop()), sess
}

// TestStatusListener_HandleMessage_StoresSelectedDevice tests that a record for the selected device is kept.
func TestStatusListener_HandleMessage_StoresSelectedDevice(t *testing.T) {
	listener, sess := newListener("cam-1")

	listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, statusPayload("cam-1")))

	record, ok := sess.LastStatus()
	require.True(t, ok)
	assert.Equal(t, "cam-1", record.DeviceID)
	assert.Equal(t, "10.0.0.5", *record.DeviceAddress)
	assert.Equal(t, "0:12:30", record.InferenceRuntime)
	assert.Equal(t, "1:00:02", record.FileserverRuntime)
}

// TestStatusListener_HandleMessage_OtherDeviceDoesNotMutate tests that records for other devices never replace the stored one.
func TestStatusListener_HandleMessage_OtherDeviceDoesNotMutate(t *testing.T) {
	listener, sess := newListener("cam-1")
	existing := models.StatusRecord{DeviceID: "cam-1", Time: "earlier"}
	sess.StoreStatus(existing)

	listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, statusPayload("cam-2")))

	record, ok := sess.LastStatus()
	require.True(t, ok)
	assert.Equal(t, existing, record)
}

// TestStatusListener_HandleMessage_NoSelectedDevice tests that nothing is stored before a device is selected.
func TestStatusListener_HandleMessage_NoSelectedDevice(t *testing.T) {
	listener, sess := newListener("")

	listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, statusPayload("cam-1")))

	assert.False(t, sess.HasLastStatus())
}

// TestStatusListener_HandleMessage_InvalidPayload tests that undecodable payloads are dropped.
func TestStatusListener_HandleMessage_InvalidPayload(t *testing.T) {
	listener, sess := newListener("cam-1")

	assert.NotPanics(t, func() {
		listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, []byte("invalid-json")))
	})
	assert.False(t, sess.HasLastStatus())
}

// TestStatusListener_HandleMessage_UnexpectedTopic tests that messages from other topics are ignored.
func TestStatusListener_HandleMessage_UnexpectedTopic(t *testing.T) {
	listener, sess := newListener("cam-1")

	listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultCommandsTopic, statusPayload("cam-1")))

	assert.False(t, sess.HasLastStatus())
}

// TestStatusListener_HandleMessage_NotStreaming tests the "N/A" streaming sentinel and a missing device address.
func TestStatusListener_HandleMessage_NotStreaming(t *testing.T) {
	listener, sess := newListener("cam-1")
	payload := []byte(`{"device_id":"cam-1","device_address":null,"streaming_address":"N/A"}`)

	listener.HandleMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, payload))

	record, ok := sess.LastStatus()
	require.True(t, ok)
	assert.False(t, record.IsStreaming())
	assert.False(t, record.HasDeviceAddress())
}
