package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/command-bridge/internal/constants"
	"github.com/benmeehan/command-bridge/internal/models"
	"github.com/benmeehan/command-bridge/internal/session"
	"github.com/benmeehan/command-bridge/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ConnectionProvider hands out the session's broker connection.
type ConnectionProvider interface {
	Acquire() (BrokerConnection, error)
}

// BridgeOptions tunes the command round-trip.
type BridgeOptions struct {
	CommandsTopic   string
	StatusTopic     string
	PublishAttempts int
	WaitBudget      time.Duration // Per connect, publish and response wait
	PumpSlice       time.Duration // Length of one pump call
}

func (o BridgeOptions) withDefaults() BridgeOptions {
	if o.CommandsTopic == "" {
		o.CommandsTopic = constants.DefaultCommandsTopic
	}
	if o.StatusTopic == "" {
		o.StatusTopic = constants.DefaultStatusTopic
	}
	if o.PublishAttempts <= 0 {
		o.PublishAttempts = constants.DefaultPublishAttempts
	}
	if o.WaitBudget <= 0 {
		o.WaitBudget = constants.DefaultWaitBudget
	}
	if o.PumpSlice <= 0 {
		o.PumpSlice = constants.DefaultPumpSlice
	}
	return o
}

// CommandBridge sends a command to a device over MQTT and waits, for a
// bounded time, for the device to report its status back. All outcomes are
// reported through the session's status line.
type CommandBridge struct {
	opts        BridgeOptions
	connections ConnectionProvider
	session     *session.Session
	logger      zerolog.Logger

	// One round-trip at a time: the wait for a reply is keyed on the
	// session's last status, which a second command would clear.
	mu sync.Mutex
}

// NewCommandBridge creates a bridge reporting into sess.
func NewCommandBridge(opts BridgeOptions, connections ConnectionProvider, sess *session.Session, logger zerolog.Logger) *CommandBridge {
	return &CommandBridge{
		opts:        opts.withDefaults(),
		connections: connections,
		session:     sess,
		logger:      logger,
	}
}

// SendCommand runs one command round-trip. It never fails: every path ends
// by writing a terminal status line.
func (b *CommandBridge) SendCommand(deviceID string, command models.Command) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger := b.logger.With().Str("device_id", deviceID).Str("command", string(command)).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Command round-trip panicked")
			b.session.SetStatus(fmt.Sprintf(constants.StatusUnreachable, r))
		}
	}()

	if err := b.roundTrip(deviceID, command, logger); err != nil {
		logger.Error().Err(err).Msg("Command round-trip failed")
		b.session.SetStatus(fmt.Sprintf(constants.StatusUnreachable, err))
	}
}

// Prime requests a status from deviceID when the session has nothing to
// show for it yet, as on the first view of a device.
func (b *CommandBridge) Prime(deviceID string) {
	if b.session.HasLastStatus() || b.session.StatusLine() != "" {
		return
	}
	b.SendCommand(deviceID, models.CommandStatusRequest)
}

func (b *CommandBridge) roundTrip(deviceID string, command models.Command, logger zerolog.Logger) error {
	if !command.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownCommand, command)
	}

	payload, err := json.Marshal(models.CommandEnvelope{DeviceID: deviceID, Command: command})
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}

	conn, err := b.connections.Acquire()
	if err != nil {
		return err
	}

	if !b.session.Connected() {
		b.session.SetStatus(constants.StatusConnecting)
		b.waitFor(conn, b.session.Connected)
	}

	b.session.ClearLastStatus()

	delivery, err := b.publish(conn, payload, logger)
	if err != nil {
		return err
	}
	if delivery == nil || !delivery.Published() {
		logger.Warn().Int("attempts", b.opts.PublishAttempts).Msg("Command was not delivered to the broker")
		b.session.SetStatus(constants.StatusMessageFailed)
		return nil
	}

	b.waitFor(conn, b.session.HasLastStatus)
	if !b.session.HasLastStatus() {
		logger.Warn().Msg("Device did not respond")
		b.session.SetStatus(constants.StatusNoResponse)
		return nil
	}

	logger.Info().Msg("Device responded")
	return nil
}

// publish tries to hand the command to the broker, reconnecting after a
// transport failure. The status subscription is renewed on every attempt
// because a fresh broker session has none.
func (b *CommandBridge) publish(conn BrokerConnection, payload []byte, logger zerolog.Logger) (mqtt.PublishResult, error) {
	var delivery mqtt.PublishResult

	for attempt := 1; attempt <= b.opts.PublishAttempts; attempt++ {
		if err := conn.Subscribe(b.opts.StatusTopic); err != nil {
			logger.Warn().Err(err).Str("topic", b.opts.StatusTopic).Msg("Failed to subscribe to status topic")
		}

		delivery = conn.Publish(b.opts.CommandsTopic, payload)
		b.session.SetStatus(constants.StatusSending)
		b.waitFor(conn, func() bool {
			return delivery.Err() != nil || delivery.Published()
		})

		if delivery.Published() {
			logger.Info().Int("attempt", attempt).Msg("Command delivered to broker")
			b.session.SetStatus(constants.StatusWaitingResponse)
			return delivery, nil
		}

		if err := delivery.Err(); err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Publish failed, reconnecting")
			b.session.MarkDisconnected()
			b.session.SetStatus(constants.StatusReconnecting)
			if err := conn.Reconnect(); err != nil {
				return nil, err
			}
			b.waitFor(conn, b.session.Connected)
			continue
		}

		logger.Warn().Int("attempt", attempt).Msg("Publish was not confirmed in time")
	}

	return delivery, nil
}

// waitFor pumps conn in fixed slices until done reports true or the wait
// budget is spent. Every pump consumes a slice whether or not it made progress.
func (b *CommandBridge) waitFor(conn BrokerConnection, done func() bool) {
	slices := int(b.opts.WaitBudget / b.opts.PumpSlice)
	if slices < 1 {
		slices = 1
	}
	for remaining := slices; remaining > 0 && !done(); remaining-- {
		conn.Pump(b.opts.PumpSlice)
	}
}
