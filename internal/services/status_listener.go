package services

import (
	"encoding/json"

	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/benmeehan/command-bridge/internal/session"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// StatusListener stores status records reported by the selected device.
// It is the only writer of the session's last status.
type StatusListener struct {
	topic   string
	session *session.Session
	logger  zerolog.Logger
}

// NewStatusListener creates a listener for records arriving on topic.
func NewStatusListener(topic string, sess *session.Session, logger zerolog.Logger) *StatusListener {
	return &StatusListener{
		topic:   topic,
		session: sess,
		logger:  logger,
	}
}

// HandleMessage decodes a status record and keeps it if it belongs to the
// selected device. Everything else is dropped.
func (l *StatusListener) HandleMessage(_ MQTT.Client, msg MQTT.Message) {
	if msg.Topic() != l.topic {
		l.logger.Debug().Str("topic", msg.Topic()).Msg("Ignoring message from unexpected topic")
		return
	}

	selected := l.session.SelectedDevice()
	if selected == "" {
		return
	}

	var record models.StatusRecord
	if err := json.Unmarshal(msg.Payload(), &record); err != nil {
		l.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to decode device status")
		return
	}

	if record.DeviceID != selected {
		return
	}

	l.logger.Debug().Str("device_id", record.DeviceID).Str("time", record.Time).Msg("Received device status")
	l.session.StoreStatus(record)
}
