package services

import (
	"sync"
	"time"

	"github.com/benmeehan/command-bridge/internal/constants"
	mqtt_middleware "github.com/benmeehan/command-bridge/internal/middlewares/mqtt"
	"github.com/benmeehan/command-bridge/internal/session"
	"github.com/benmeehan/command-bridge/pkg/file"
	"github.com/benmeehan/command-bridge/pkg/mqtt"
	"github.com/rs/zerolog"
)

// BrokerConnection is a pumped broker session. Network effects, including
// callbacks, only happen inside Pump.
type BrokerConnection interface {
	Subscribe(topic string) error
	Publish(topic string, payload []byte) mqtt.PublishResult
	Pump(timeout time.Duration)
	Reconnect() error
	Close()
}

// Dialer creates and connects a broker session wired to handlers.
type Dialer func(handlers mqtt.Handlers) (BrokerConnection, error)

// NewMQTTDialer returns a Dialer backed by paho.
func NewMQTTDialer(opts mqtt.Options, fileClient file.FileOperations, logger zerolog.Logger) Dialer {
	return func(handlers mqtt.Handlers) (BrokerConnection, error) {
		conn, err := mqtt.NewConnection(opts, fileClient, handlers, logger)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(); err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// ConnectionManager owns the single broker session of an operator session.
type ConnectionManager struct {
	dial     Dialer
	session  *session.Session
	listener *StatusListener
	logger   zerolog.Logger

	mu   sync.Mutex
	conn BrokerConnection
}

// NewConnectionManager creates a manager; nothing is dialed until Acquire.
func NewConnectionManager(dial Dialer, sess *session.Session, listener *StatusListener, logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		dial:     dial,
		session:  sess,
		listener: listener,
		logger:   logger,
	}
}

// Acquire returns the cached connection, dialing it on first use. A failed
// dial is not cached, so the next call tries again.
func (cm *ConnectionManager) Acquire() (BrokerConnection, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn != nil {
		return cm.conn, nil
	}

	cm.logger.Info().Str("session_id", cm.session.ID()).Msg("Opening broker connection")
	conn, err := cm.dial(mqtt.Handlers{
		OnConnect: cm.session.MarkConnected,
		OnMessage: mqtt_middleware.Chain(cm.listener.HandleMessage,
			mqtt_middleware.Logging(cm.logger),
			mqtt_middleware.MaxPayload(constants.MaxStatusPayload, cm.logger),
		),
	})
	if err != nil {
		cm.logger.Error().Err(err).Str("session_id", cm.session.ID()).Msg("Failed to open broker connection")
		return nil, err
	}

	cm.conn = conn
	return conn, nil
}

// Close disconnects the cached connection, if any.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.conn == nil {
		return
	}
	cm.conn.Close()
	cm.conn = nil
	cm.logger.Info().Str("session_id", cm.session.ID()).Msg("Broker connection closed")
}
