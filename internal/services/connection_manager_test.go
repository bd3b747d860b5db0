package services_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/command-bridge/internal/constants"
	"github.com/benmeehan/command-bridge/internal/mocks"
	"github.com/benmeehan/command-bridge/internal/services"
	"github.com/benmeehan/command-bridge/internal/session"
	"github.com/benmeehan/command-bridge/pkg/mqtt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	fakeConnection
	closed int
}

func (c *closeCounter) Close() { c.closed++ }

func newManager(dial services.Dialer) (*services.ConnectionManager, *session.Session) {
	sess := session.New("test-session")
	sess.SelectDevice("cam-1")
	listener := services.NewStatusListener(constants.DefaultStatusTopic, sess, zerolog.Nop())
	return services.NewConnectionManager(dial, sess, listener, zerolog.Nop()), sess
}

// TestConnectionManager_Acquire_DialsOnce tests that the connection is created lazily and cached.
func TestConnectionManager_Acquire_DialsOnce(t *testing.T) {
	dials := 0
	conn := &closeCounter{}
	manager, _ := newManager(func(h mqtt.Handlers) (services.BrokerConnection, error) {
		dials++
		conn.handlers = h
		return conn, nil
	})

	assert.Equal(t, 0, dials)

	first, err := manager.Acquire()
	require.NoError(t, err)
	second, err := manager.Acquire()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dials)
}

// TestConnectionManager_Acquire_FailureIsNotCached tests that a failed dial is retried on the next Acquire.
func TestConnectionManager_Acquire_FailureIsNotCached(t *testing.T) {
	dials := 0
	manager, _ := newManager(func(mqtt.Handlers) (services.BrokerConnection, error) {
		dials++
		if dials == 1 {
			return nil, errors.New("connection refused")
		}
		return &closeCounter{}, nil
	})

	_, err := manager.Acquire()
	assert.EqualError(t, err, "connection refused")

	conn, err := manager.Acquire()
	assert.NoError(t, err)
	assert.NotNil(t, conn)
	assert.Equal(t, 2, dials)
}

// TestConnectionManager_Handlers_UpdateSession tests that the dialed callbacks drive the session.
func TestConnectionManager_Handlers_UpdateSession(t *testing.T) {
	conn := &closeCounter{}
	manager, sess := newManager(func(h mqtt.Handlers) (services.BrokerConnection, error) {
		conn.handlers = h
		return conn, nil
	})

	_, err := manager.Acquire()
	require.NoError(t, err)

	conn.handlers.OnConnect()
	conn.handlers.OnMessage(nil, mocks.NewMockMessage(constants.DefaultStatusTopic, statusPayload("cam-1")))

	assert.True(t, sess.Connected())
	assert.True(t, sess.HasLastStatus())
}

// TestConnectionManager_Close tests that Close disconnects and the next Acquire dials again.
func TestConnectionManager_Close(t *testing.T) {
	dials := 0
	conn := &closeCounter{}
	manager, _ := newManager(func(mqtt.Handlers) (services.BrokerConnection, error) {
		dials++
		return conn, nil
	})

	manager.Close()
	assert.Equal(t, 0, conn.closed)

	_, err := manager.Acquire()
	require.NoError(t, err)
	manager.Close()
	assert.Equal(t, 1, conn.closed)

	_, err = manager.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}
